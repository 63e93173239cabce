// Package http provides the HTTP client used for index and byte-range
// retrieval.
//
// This package handles:
//   - Connection pooling for high parallelism
//   - Whole-resource GET for index files
//   - Range requests for individual GRIB fields
//   - Retry with exponential backoff and jitter
//
// # Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	// Fetch an index file
//	body, err := client.Get(ctx, indexURL)
//
//	// Fetch one field; bounds are inclusive per the Range header
//	resp, err := client.GetRange(ctx, blobURL, offset, offset+length-1)
//	defer resp.Body.Close()
package http

// Package index retrieves and parses the per-lead-time index resources
// that describe where each field lives inside a forecast blob.
//
// An index resource is line-delimited JSON in the ECMWF open-data format:
// one record per field, carrying the variable code (param), the lead time
// (step), the ensemble member (number, absent for the control run) and the
// field's byte location (_offset, _length).
//
// Index fetching is deliberately forgiving: an unreachable or malformed
// resource marks only its own lead time unavailable. The pipeline is built
// to degrade to partial coverage rather than abort.
package index

package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// publish copies final artifacts into the configured object-storage
// bucket. Each member uploads independently; a failed upload is recorded
// and never touches the local artifact.
func publish(ctx context.Context, bucketURL string, finals map[int]string) (map[int]string, map[int]error) {
	published := make(map[int]string)
	failed := make(map[int]error)

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		for member := range finals {
			failed[member] = fmt.Errorf("open bucket: %w", err)
		}
		return published, failed
	}
	defer bucket.Close()

	for member, final := range finals {
		key := filepath.Base(final)
		if err := uploadFile(ctx, bucket, key, final); err != nil {
			failed[member] = err
			continue
		}
		published[member] = key
	}

	return published, failed
}

func uploadFile(ctx context.Context, bucket *blob.Bucket, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return err
	}

	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Package objstore copies finished snapshot and journal files to a blob bucket.
package objstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/s3blob"
)

// BucketURL builds an s3:// bucket URL for an S3-compatible endpoint. Credentials come
// from the usual AWS environment variables or shared credentials file.
func BucketURL(bucket, endpoint, region string) (string, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return "", fmt.Errorf("empty bucket")
	}
	q := url.Values{}
	if region = strings.TrimSpace(region); region == "" {
		region = "auto"
	}
	q.Set("region", region)
	if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
		q.Set("endpoint", endpoint)
		q.Set("s3ForcePathStyle", "true")
	}
	return "s3://" + bucket + "?" + q.Encode(), nil
}

// BucketUploader writes local files to a blob bucket.
type BucketUploader struct {
	bucket *blob.Bucket
}

// OpenBucket opens any registered bucket URL (s3://, file://).
func OpenBucket(ctx context.Context, bucketURL string) (*BucketUploader, error) {
	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return &BucketUploader{bucket: b}, nil
}

func NewBucketUploader(b *blob.Bucket) *BucketUploader { return &BucketUploader{bucket: b} }

func (u *BucketUploader) PutFile(ctx context.Context, objectKey, localPath string) error {
	objectKey = normalizeObjectKey(objectKey)
	if objectKey == "" {
		return fmt.Errorf("empty object key")
	}

	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("path is directory: %s", localPath)
	}

	// Cancelling the writer's context before Close discards a partial object.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w, err := u.bucket.NewWriter(wctx, objectKey, &blob.WriterOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, f); err != nil {
		cancel()
		_ = w.Close()
		return fmt.Errorf("put %s: %w", objectKey, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("put %s: %w", objectKey, err)
	}
	return nil
}

func (u *BucketUploader) Close() error { return u.bucket.Close() }

func normalizeObjectKey(key string) string {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return ""
	}
	clean := strings.TrimPrefix(path.Clean("/"+key), "/")
	if clean == "." || clean == "" {
		return ""
	}
	return clean
}

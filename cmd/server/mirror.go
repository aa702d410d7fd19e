package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"voxelmesh.ai/internal/persistence/objstore"
)

// buildMirror returns nil unless VM_MIRROR is enabled. A nil mirror ignores Enqueue.
// VM_MIRROR_URL names any bucket URL; otherwise an s3:// URL is built from VM_S3_BUCKET,
// VM_S3_ENDPOINT and VM_S3_REGION, with credentials from the AWS environment.
func buildMirror(dataDir string, logger *log.Logger) (*objstore.Mirror, error) {
	if !envBool("VM_MIRROR", false) {
		return nil, nil
	}
	bucketURL, err := mirrorURL()
	if err != nil {
		return nil, fmt.Errorf("VM_MIRROR=true: %w", err)
	}
	up, err := objstore.OpenBucket(context.Background(), bucketURL)
	if err != nil {
		return nil, fmt.Errorf("VM_MIRROR=true: %w", err)
	}
	return objstore.NewMirror(up, objstore.MirrorConfig{
		DataDir: dataDir,
		Prefix:  os.Getenv("VM_S3_PREFIX"),
		Workers: envInt("VM_MIRROR_WORKERS", 2),
		Queue:   envInt("VM_MIRROR_QUEUE", 2048),
		Logger:  logger,
	}), nil
}

func mirrorURL() (string, error) {
	if u := strings.TrimSpace(os.Getenv("VM_MIRROR_URL")); u != "" {
		return u, nil
	}
	return objstore.BucketURL(os.Getenv("VM_S3_BUCKET"), os.Getenv("VM_S3_ENDPOINT"), os.Getenv("VM_S3_REGION"))
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

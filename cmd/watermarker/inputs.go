package main

import (
	"context"
	"fmt"
	"os"

	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/watermarker/internal/collect"
	"github.com/aliskhannn/watermarker/internal/config"
	"github.com/aliskhannn/watermarker/internal/storage/file"
)

// localInputs turns command-line paths into collector entries, keeping
// their order. Directories become directory handles, anything else a
// flat file.
func localInputs(paths []string) ([]collect.Entry, error) {
	entries := make([]collect.Entry, 0, len(paths))

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat input %s: %w", p, err)
		}

		if info.IsDir() {
			d, err := collect.LocalDir(p)
			if err != nil {
				return nil, err
			}
			entries = append(entries, collect.DirEntry(d))
			continue
		}

		f, err := collect.LocalFile(p, "")
		if err != nil {
			return nil, err
		}
		entries = append(entries, collect.FileEntry(f))
	}

	return entries, nil
}

func retryStrategy(cfg config.Retry) retry.Strategy {
	return retry.Strategy{
		Attempts: cfg.Attempts,
		Delay:    cfg.Delay,
		Backoff:  cfg.Backoff,
	}
}

// openStorage connects to the configured MinIO bucket.
func openStorage(ctx context.Context, cfg *config.Config) (*file.Storage, error) {
	s := cfg.Storage
	if s.Endpoint == "" || s.BucketName == "" {
		return nil, fmt.Errorf("storage endpoint and bucket name must be configured")
	}

	return file.NewStorage(ctx, s.Endpoint, s.AccessKey, s.SecretKey, s.BucketName, s.UseSSL, retryStrategy(cfg.Retry))
}

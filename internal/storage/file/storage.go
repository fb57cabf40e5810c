package file

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/watermarker/internal/collect"
)

// Storage provides an S3-compatible storage backend using MinIO.
// Objects under a prefix can be collected as a directory of input
// images, and finished archives can be uploaded back to the bucket.
type Storage struct {
	client     *minio.Client
	bucketName string
	strategy   retry.Strategy
}

// NewStorage creates a new Storage instance connected to the specified MinIO server.
// If the bucket does not exist, it will be created automatically.
func NewStorage(ctx context.Context, endpoint, accessKey, secretKey, bucketName string, useSSL bool, s retry.Strategy) (*Storage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Storage{
		client:     client,
		bucketName: bucketName,
		strategy:   s,
	}, nil
}

// Save uploads size bytes from src to the specified subdirectory in the
// bucket, retrying with the storage's strategy. src must be seekable for
// retries to resend the full body. Returns the object path within the
// bucket.
func (s *Storage) Save(ctx context.Context, subdir, filename, contentType string, src io.ReadSeeker, size int64) (string, error) {
	objectName := path.Join(subdir, filename)

	err := retry.Do(func() error {
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			return err
		}
		_, err := s.client.PutObject(ctx, s.bucketName, objectName, src, size, minio.PutObjectOptions{
			ContentType: contentType,
		})
		return err
	}, s.strategy)
	if err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return objectName, nil
}

// Dir returns the objects under prefix as a collectable directory.
func (s *Storage) Dir(prefix string) collect.Directory {
	return bucketDir{storage: s, prefix: strings.Trim(prefix, "/")}
}

// bucketDir is one level of a bucket listing. Common prefixes become
// subdirectories.
type bucketDir struct {
	storage *Storage
	prefix  string
}

func (d bucketDir) Name() string {
	if d.prefix == "" {
		return ""
	}
	return path.Base(d.prefix)
}

func (d bucketDir) Entries(ctx context.Context) ([]collect.Entry, error) {
	listPrefix := ""
	if d.prefix != "" {
		listPrefix = d.prefix + "/"
	}

	var entries []collect.Entry
	for obj := range d.storage.client.ListObjects(ctx, d.storage.bucketName, minio.ListObjectsOptions{
		Prefix:    listPrefix,
		Recursive: false,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}

		if strings.HasSuffix(obj.Key, "/") {
			entries = append(entries, collect.DirEntry(bucketDir{
				storage: d.storage,
				prefix:  strings.TrimSuffix(obj.Key, "/"),
			}))
			continue
		}

		entries = append(entries, collect.FileEntry(bucketFile{storage: d.storage, key: obj.Key}))
	}

	return entries, nil
}

// bucketFile is a single object.
type bucketFile struct {
	storage *Storage
	key     string
}

func (f bucketFile) Name() string         { return path.Base(f.key) }
func (f bucketFile) RelativePath() string { return "" }

// Open fetches the object. GetObject is lazy, so the object is stat'ed
// first to report a missing or unreadable object as an open failure.
func (f bucketFile) Open(ctx context.Context) (io.ReadCloser, error) {
	obj, err := f.storage.client.GetObject(ctx, f.storage.bucketName, f.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to load file: %w", err)
	}

	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return obj, nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of *s3.Client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var _ S3API = (*s3.Client)(nil)

// Store uploads and downloads local files under a bucket/prefix layout.
type Store struct {
	client S3API
	bucket string
	logger *slog.Logger
}

func New(client S3API, bucket string, logger *slog.Logger) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, bucket: bucket, logger: logger}, nil
}

func (s *Store) Bucket() string { return s.bucket }

// Key joins prefix and name with a single slash.
func Key(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Upload puts localPath at prefix/<basename> and returns the key.
func (s *Store) Upload(ctx context.Context, localPath, prefix string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	key := Key(prefix, filepath.Base(localPath))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s to s3://%s/%s: %w", localPath, s.bucket, key, err)
	}

	s.logger.Info("uploaded",
		slog.String("file", localPath),
		slog.String("bucket", s.bucket),
		slog.String("key", key))
	return key, nil
}

// Download writes the object at key into localDir/<basename of key>.
func (s *Store) Download(ctx context.Context, key, localDir string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", localDir, err)
	}

	dst := filepath.Join(localDir, path.Base(key))
	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dst, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, out.Body); err != nil {
		return "", fmt.Errorf("write %s: %w", dst, err)
	}

	s.logger.Info("downloaded",
		slog.String("bucket", s.bucket),
		slog.String("key", key),
		slog.String("file", dst))
	return dst, nil
}

// List returns every key under prefix that ends with ext. An empty ext
// matches all keys.
func (s *Store) List(ctx context.Context, prefix, ext string) ([]string, error) {
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var keys []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			if ext == "" || strings.HasSuffix(key, ext) {
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

// DownloadPrefix downloads every object under prefix ending with ext into
// localDir and returns the local paths.
func (s *Store) DownloadPrefix(ctx context.Context, prefix, localDir, ext string) ([]string, error) {
	keys, err := s.List(ctx, prefix, ext)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(keys))
	for _, key := range keys {
		p, err := s.Download(ctx, key, localDir)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// Package s3storage is the S3/MinIO alternative to Drive for incident photos.
// Objects land in one bucket whose policy allows anonymous reads, so the
// returned link works without signing.
package s3storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/LineReport/internal/config"
	"github.com/dharsanguruparan/LineReport/internal/model"
)

// ErrForeignURL is returned by Delete for links outside the configured bucket.
var ErrForeignURL = errors.New("url does not belong to photo bucket")

// Storage wraps MinIO/S3 interactions for photos.
type Storage struct {
	client     *minio.Client
	bucket     string
	region     string
	publicBase string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	base := cfg.S3PublicURL
	if base == "" {
		scheme := "http"
		if cfg.S3UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + cfg.S3Endpoint
	}
	return &Storage{
		client:     client,
		bucket:     cfg.S3Bucket,
		region:     cfg.S3Region,
		publicBase: strings.TrimRight(base, "/"),
	}, nil
}

// EnsureBucket creates the photo bucket if needed and opens it for anonymous
// reads.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	if err := s.client.SetBucketPolicy(ctx, s.bucket, publicReadPolicy(s.bucket)); err != nil {
		return fmt.Errorf("set policy on %s: %w", s.bucket, err)
	}
	return nil
}

// Upload puts the photo under a fresh key and returns its public link.
func (s *Storage) Upload(ctx context.Context, photo *model.Photo) (string, error) {
	if photo == nil || len(photo.Data) == 0 {
		return "", errors.New("s3storage: empty photo")
	}
	key := ObjectKey(uuid.NewString(), photo.Name)
	opts := minio.PutObjectOptions{ContentType: photo.ContentType}
	if _, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(photo.Data), photo.Size(), opts); err != nil {
		return "", fmt.Errorf("upload photo object: %w", err)
	}
	return s.PublicURL(key), nil
}

// Delete removes the object behind a link returned by Upload.
func (s *Storage) Delete(ctx context.Context, link string) error {
	key, err := s.keyFromURL(link)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove photo object: %w", err)
	}
	return nil
}

// PublicURL returns the anonymous-read link for key.
func (s *Storage) PublicURL(key string) string {
	return s.publicBase + "/" + s.bucket + "/" + escapeKey(key)
}

func (s *Storage) keyFromURL(link string) (string, error) {
	prefix := s.publicBase + "/" + s.bucket + "/"
	if !strings.HasPrefix(link, prefix) {
		return "", fmt.Errorf("%w: %q", ErrForeignURL, link)
	}
	key, err := url.PathUnescape(strings.TrimPrefix(link, prefix))
	if err != nil || key == "" {
		return "", fmt.Errorf("%w: %q", ErrForeignURL, link)
	}
	return key, nil
}

// ObjectKey namespaces an upload under its own ID so equal filenames never
// collide.
func ObjectKey(id, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "photo"
	}
	return fmt.Sprintf("photos/%s/%s", id, name)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}

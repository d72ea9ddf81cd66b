// Package storage uploads user avatars to S3-compatible object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/annnsvm/contactsd/internal/config"
)

// objectStore is the subset of *minio.Client used here; an interface so tests
// can run without a MinIO server.
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// AvatarStore uploads avatar images and returns their public URLs.
type AvatarStore struct {
	store      objectStore
	bucket     string
	publicBase string

	// newKey is injectable so tests get deterministic object names.
	newKey func() string
}

// NewAvatarStore builds a MinIO-backed store and ensures the bucket exists.
func NewAvatarStore(ctx context.Context, cfg config.StorageConfig) (*AvatarStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	publicBase := cfg.PublicBase
	if publicBase == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicBase = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	s := &AvatarStore{
		store:      client,
		bucket:     cfg.Bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
		newKey:     func() string { return uuid.NewString() },
	}

	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Upload stores the avatar under avatars/<username>-<uuid> and returns its
// public URL. The random suffix makes each upload a fresh object so stale
// CDN / browser caches never serve the previous avatar.
func (s *AvatarStore) Upload(ctx context.Context, username string, r io.Reader, size int64, contentType string) (string, error) {
	object := fmt.Sprintf("avatars/%s-%s", username, s.newKey())

	_, err := s.store.PutObject(ctx, s.bucket, object, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("uploading avatar for %s: %w", username, err)
	}

	return s.publicBase + "/" + object, nil
}

func (s *AvatarStore) ensureBucket(ctx context.Context) error {
	exists, err := s.store.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.store.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Package media stores listing photos in S3-compatible object storage.
package media

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"rentfolio/api/internal/store"
	"rentfolio/api/internal/util"
)

// Config holds object storage settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// BaseURL is the public prefix for stored objects. Defaults to the
	// endpoint itself when empty.
	BaseURL string
}

// Store uploads and removes listing photos.
type Store struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewStore connects to the object storage backend and ensures the bucket
// exists.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		log.Printf("media: created bucket %s", cfg.Bucket)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	return &Store{client: client, bucket: cfg.Bucket, baseURL: baseURL}, nil
}

// Upload stores one photo under the listing's prefix and returns the image
// reference to persist on the property row.
func (s *Store) Upload(ctx context.Context, propertyID string, reader io.Reader, size int64, contentType string) (store.PropertyImage, error) {
	ext := extensionFor(contentType)
	if ext == "" {
		return store.PropertyImage{}, fmt.Errorf("unsupported content type %q", contentType)
	}

	objectName := path.Join("properties", propertyID, util.NewID("img")+ext)
	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=86400",
	})
	if err != nil {
		return store.PropertyImage{}, fmt.Errorf("put object: %w", err)
	}

	return store.PropertyImage{
		URL:      s.baseURL + "/" + objectName,
		PublicID: objectName,
	}, nil
}

// Remove deletes a stored photo. Removing the placeholder is a no-op.
func (s *Store) Remove(ctx context.Context, publicID string) error {
	if publicID == "" || publicID == store.PlaceholderImage.PublicID {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, publicID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// RemoveAll deletes every photo stored for a listing. Best effort; the
// listing row is already gone by the time this runs.
func (s *Store) RemoveAll(ctx context.Context, propertyID string) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	prefix := path.Join("properties", propertyID) + "/"
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			log.Printf("media: list objects for %s: %v", propertyID, object.Err)
			return
		}
		if err := s.client.RemoveObject(ctx, s.bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			log.Printf("media: remove %s: %v", object.Key, err)
		}
	}
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

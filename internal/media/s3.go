package media

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config configures an S3-compatible bucket.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// PublicURL is the origin objects are served from. Defaults to the
	// endpoint with the bucket as the first path element.
	PublicURL string
}

// S3Storage stores objects in an S3-compatible bucket.
type S3Storage struct {
	cfg    S3Config
	client *minio.Client
}

// NewS3Storage builds a client; it does not contact the server.
func NewS3Storage(cfg S3Config) (*S3Storage, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
	cl, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	if cfg.PublicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		cfg.PublicURL = fmt.Sprintf("%s://%s/%s", scheme, endpoint, cfg.Bucket)
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &S3Storage{cfg: cfg, client: cl}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		return s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{})
	}
	return nil
}

// Put uploads the object in a single request.
func (s *S3Storage) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error {
	if !validKey(key) {
		return errInvalidKey
	}
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, r, size,
		minio.PutObjectOptions{ContentType: contentType})
	return err
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return errInvalidKey
	}
	return s.client.RemoveObject(ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{})
}

func (s *S3Storage) URL(_, key string) string {
	return s.cfg.PublicURL + "/" + key
}

func (s *S3Storage) KeyFor(rawURL string) (string, bool) {
	key, ok := strings.CutPrefix(rawURL, s.cfg.PublicURL+"/")
	if !ok {
		return "", false
	}
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	if !validKey(key) {
		return "", false
	}
	return key, true
}

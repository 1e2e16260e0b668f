package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const uploadTimeout = 2 * time.Minute

type GCSConfig struct {
	Bucket    string
	ProjectID string
	// Credentials is either service-account JSON or a path to it. Empty uses
	// application default credentials.
	Credentials string
	// Endpoint overrides the storage API endpoint, for emulators.
	Endpoint string
}

type GCSStore struct {
	client    *storage.Client
	bucket    string
	projectID string
	log       *zap.Logger
}

// ClientOptions turns the config into storage client options. An endpoint
// without credentials is assumed to be an emulator.
func ClientOptions(cfg GCSConfig) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}

	creds := strings.TrimSpace(cfg.Credentials)
	switch {
	case strings.HasPrefix(creds, "{"):
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	case creds != "":
		opts = append(opts, option.WithCredentialsFile(creds))
	case cfg.Endpoint != "":
		opts = append(opts, option.WithoutAuthentication())
	}

	if endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"); endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "http://" + endpoint
		}
		opts = append(opts, option.WithEndpoint(endpoint+"/storage/v1/"))
	}
	return opts
}

func NewGCSStore(ctx context.Context, cfg GCSConfig, log *zap.Logger) (*GCSStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("archive bucket is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	client, err := storage.NewClient(ctx, ClientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStore{
		client:    client,
		bucket:    cfg.Bucket,
		projectID: cfg.ProjectID,
		log:       log.Named("archive.gcs"),
	}, nil
}

func (s *GCSStore) Bucket() string { return s.bucket }

func (s *GCSStore) Put(ctx context.Context, object string, content []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, bytes.NewReader(content)); err != nil {
		_ = w.Close()
		return s.wrap(err)
	}
	if err := w.Close(); err != nil {
		return s.wrap(err)
	}
	s.log.Debug("archived object", zap.String("bucket", s.bucket), zap.String("object", object), zap.Int("bytes", len(content)))
	return nil
}

// EnsureBucket creates the bucket in the configured project when it is missing.
func (s *GCSStore) EnsureBucket(ctx context.Context) error {
	_, err := s.client.Bucket(s.bucket).Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("inspect bucket %q: %w", s.bucket, err)
	}
	if s.projectID == "" {
		return fmt.Errorf("bucket %q: %w", s.bucket, ErrBucketNotFound)
	}
	if err := s.client.Bucket(s.bucket).Create(ctx, s.projectID, nil); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket, err)
	}
	s.log.Info("created bucket", zap.String("bucket", s.bucket), zap.String("project", s.projectID))
	return nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) wrap(err error) error {
	var apiErr *googleapi.Error
	if errors.Is(err, storage.ErrBucketNotExist) || (errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound) {
		return fmt.Errorf("bucket %q: %w: %v", s.bucket, ErrBucketNotFound, err)
	}
	return fmt.Errorf("upload to %q: %w", s.bucket, err)
}

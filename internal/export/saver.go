package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DirSaver writes exports into a local directory.
type DirSaver struct {
	dir string
}

// NewDirSaver creates a saver rooted at dir.
func NewDirSaver(dir string) *DirSaver {
	return &DirSaver{dir: dir}
}

func (s *DirSaver) Save(_ context.Context, name, _ string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	// Names are already sanitised; Base keeps a stray separator from escaping dir.
	target := filepath.Join(s.dir, filepath.Base(name))
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	return nil
}

// ObjectSaver uploads exports to an S3-compatible bucket.
type ObjectSaver struct {
	client *minio.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// ObjectConfig configures an ObjectSaver.
type ObjectConfig struct {
	Endpoint  string // host[:port], optionally with an http(s):// scheme
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	Prefix    string
}

// NewObjectSaver connects to the bucket's endpoint. No request is made until
// the first Save.
func NewObjectSaver(cfg ObjectConfig, logger *slog.Logger) (*ObjectSaver, error) {
	useSSL := !strings.HasPrefix(strings.ToLower(cfg.Endpoint), "http://")
	client, err := minio.New(sanitizeEndpoint(cfg.Endpoint), &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       useSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init object storage client: %w", err)
	}
	return &ObjectSaver{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger.With("component", "export.object"),
	}, nil
}

func (s *ObjectSaver) Save(ctx context.Context, name, contentType string, data []byte) error {
	key := name
	if s.prefix != "" {
		key = path.Join(s.prefix, name)
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:      contentType,
		DisableMultipart: true,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	s.logger.Debug("export uploaded", "bucket", s.bucket, "key", key, "etag", info.ETag)
	return nil
}

// sanitizeEndpoint removes schemes and paths to satisfy minio.New expectations.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	host, _, _ := strings.Cut(raw, "/")
	return host
}

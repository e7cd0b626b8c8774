package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/mediscanner/api/pkg/common/config"
)

var ErrNotConfigured = errors.New("object storage is not configured")

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type Config struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
	Folder        string
	PresignTTL    time.Duration
}

func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Endpoint:      cfg.StorageEndpoint,
		Region:        cfg.StorageRegion,
		AccessKey:     cfg.StorageAccessKey,
		SecretKey:     cfg.StorageSecretKey,
		Bucket:        cfg.StorageBucket,
		PublicBaseURL: cfg.StoragePublicBaseURL,
		Folder:        cfg.StorageFolder,
		PresignTTL:    cfg.StoragePresignTTL,
	}
}

func (c Config) Enabled() bool {
	return c.Bucket != ""
}

// Object describes a stored upload.
type Object struct {
	Key          string `json:"fileId"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

// UploadAuth lets a client PUT one object directly to the bucket.
type UploadAuth struct {
	UploadURL string            `json:"uploadUrl"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	Key       string            `json:"fileId"`
	URL       string            `json:"url"`
	Expire    int64             `json:"expire"`
}

// S3Store stores prescription images in an S3-compatible bucket.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     Config
	now     func() time.Time
}

func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 15 * time.Minute
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
		now:     time.Now,
	}, nil
}

// ObjectKey builds a collision-free key under folder for a client file name.
func ObjectKey(folder, name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.Trim(unsafeNameChars.ReplaceAllString(base, "_"), "._")
	if base == "" {
		base = "upload"
	}
	folder = strings.Trim(folder, "/")
	key := uuid.NewString() + "-" + base
	if folder == "" {
		return key
	}
	return folder + "/" + key
}

// PublicURL is where a stored key can be read. Without a public base URL
// the virtual-hosted bucket address is used.
func PublicURL(cfg Config, key string) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/") + "/" + key
	}
	if cfg.Endpoint != "" {
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", cfg.Bucket, cfg.Region, key)
}

func (s *S3Store) folder(override string) string {
	if strings.Trim(override, "/") != "" {
		return override
	}
	return s.cfg.Folder
}

func (s *S3Store) Upload(ctx context.Context, folder, name, contentType string, body io.Reader) (Object, error) {
	key := ObjectKey(s.folder(folder), name)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   body,
		Metadata: map[string]string{
			"tags": "prescription,medical",
		},
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return Object{}, fmt.Errorf("put object %s: %w", key, err)
	}

	url := PublicURL(s.cfg, key)
	return Object{Key: key, Name: name, URL: url, ThumbnailURL: url}, nil
}

func (s *S3Store) PresignUpload(ctx context.Context, name string) (UploadAuth, error) {
	key := ObjectKey(s.cfg.Folder, name)
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.cfg.PresignTTL))
	if err != nil {
		return UploadAuth{}, fmt.Errorf("presign %s: %w", key, err)
	}

	headers := make(map[string]string, len(req.SignedHeader))
	for k, v := range req.SignedHeader {
		if len(v) > 0 && !strings.EqualFold(k, "Host") {
			headers[k] = v[0]
		}
	}

	return UploadAuth{
		UploadURL: req.URL,
		Method:    req.Method,
		Headers:   headers,
		Key:       key,
		URL:       PublicURL(s.cfg, key),
		Expire:    s.now().Add(s.cfg.PresignTTL).Unix(),
	}, nil
}

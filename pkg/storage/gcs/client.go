// Package gcs reads partner price lists uploaded to Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/gcp"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

const pingTimeout = 5 * time.Second

var (
	ErrObjectNotFound = errors.New("gcs object not found")
	ErrObjectTooLarge = errors.New("gcs object exceeds size limit")
	ErrInvalidURL     = errors.New("gcs url must look like gs://bucket/object")
)

// Client downloads objects through the Cloud Storage JSON API.
type Client struct {
	objects       *storage.ObjectsService
	buckets       *storage.BucketsService
	defaultBucket string
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// NewClient builds a read-only client and verifies the configured bucket is reachable.
// extra options are appended after the credential options.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcpCfg config.GCPConfig, logg *logger.Logger, extra ...option.ClientOption) (*Client, error) {
	bucket := strings.TrimSpace(cfg.PriceListBucket)
	if bucket == "" {
		return nil, errors.New("gcs price list bucket is required")
	}

	opts := append(gcp.ClientOptions(gcpCfg), option.WithScopes(storage.DevstorageReadOnlyScope))
	opts = append(opts, extra...)
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}

	client := &Client{objects: svc.Objects, buckets: svc.Buckets, defaultBucket: bucket}
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", bucket), "gcs client initialized")
	}
	return client, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.buckets == nil {
		return errors.New("gcs client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := c.buckets.Get(c.defaultBucket).Fields("name").Context(ctx).Do(); err != nil {
		return fmt.Errorf("bucket %s: %w", c.defaultBucket, err)
	}
	return nil
}

// ReadObject returns the object body, refusing anything over maxBytes.
// An empty bucket falls back to the configured one.
func (c *Client) ReadObject(ctx context.Context, bucket, object string, maxBytes int64) ([]byte, error) {
	if c == nil || c.objects == nil {
		return nil, errors.New("gcs client not initialized")
	}
	if bucket == "" {
		bucket = c.defaultBucket
	}

	resp, err := c.objects.Get(bucket, object).Context(ctx).Download()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrObjectNotFound, bucket, object)
		}
		return nil, fmt.Errorf("download gs://%s/%s: %w", bucket, object, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return nil, ErrObjectTooLarge
	}
	reader := io.Reader(resp.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", bucket, object, err)
	}
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return nil, ErrObjectTooLarge
	}
	return body, nil
}

// ParseURL splits gs://bucket/path/to/object.
func ParseURL(raw string) (bucket, object string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme != "gs" || u.Host == "" {
		return "", "", ErrInvalidURL
	}
	object = strings.TrimPrefix(u.Path, "/")
	if object == "" || strings.HasSuffix(object, "/") {
		return "", "", ErrInvalidURL
	}
	return u.Host, object, nil
}

package partner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/storage/gcs"
)

// Fetcher downloads a partner price list.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher enforces a timeout and a size cap on every download.
type HTTPFetcher struct {
	client    *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
}

func NewHTTPFetcher(cfg config.PartnerConfig) *HTTPFetcher {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxBytes := cfg.MaxDocumentBytes
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		timeout:   timeout,
		maxBytes:  maxBytes,
		userAgent: cfg.UserAgent,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	details := map[string]string{"url": url}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeFetch, err, "build price list request").WithDetails(details)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "application/yaml, text/yaml, text/plain, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeFetch, err, "price list could not be fetched").WithDetails(details)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, pkgerrors.New(pkgerrors.CodeFetch, fmt.Sprintf("price list request returned status %d", resp.StatusCode)).
			WithDetails(details)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeFetch, err, "read price list").WithDetails(details)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodeFetch, fmt.Sprintf("price list exceeds %d bytes", f.maxBytes)).
			WithDetails(details)
	}
	return body, nil
}

type objectReader interface {
	ReadObject(ctx context.Context, bucket, object string, maxBytes int64) ([]byte, error)
}

// ObjectFetcher reads gs://bucket/object price lists.
type ObjectFetcher struct {
	reader   objectReader
	timeout  time.Duration
	maxBytes int64
}

func NewObjectFetcher(reader objectReader, cfg config.PartnerConfig) *ObjectFetcher {
	f := NewHTTPFetcher(cfg)
	return &ObjectFetcher{reader: reader, timeout: f.timeout, maxBytes: f.maxBytes}
}

func (f *ObjectFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	details := map[string]string{"url": rawURL}
	bucket, object, err := gcs.ParseURL(rawURL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price list url").WithDetails(details)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	body, err := f.reader.ReadObject(ctx, bucket, object, f.maxBytes)
	switch {
	case errors.Is(err, gcs.ErrObjectTooLarge):
		return nil, pkgerrors.New(pkgerrors.CodeFetch, fmt.Sprintf("price list exceeds %d bytes", f.maxBytes)).WithDetails(details)
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeFetch, err, "price list could not be fetched").WithDetails(details)
	}
	return body, nil
}

// SchemeFetcher dispatches on the URL scheme. gs:// is rejected unless an
// object fetcher was configured.
type SchemeFetcher struct {
	web     Fetcher
	objects Fetcher
}

func NewSchemeFetcher(web, objects Fetcher) *SchemeFetcher {
	return &SchemeFetcher{web: web, objects: objects}
}

func (f *SchemeFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price list url")
	}
	switch u.Scheme {
	case "http", "https":
		return f.web.Fetch(ctx, rawURL)
	case "gs":
		if f.objects != nil {
			return f.objects.Fetch(ctx, rawURL)
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid price list url").
		WithDetails(map[string]string{"url": fmt.Sprintf("scheme %q is not supported", u.Scheme)})
}

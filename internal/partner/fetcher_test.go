package partner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/storage/gcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcherReturnsBodyAndSendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("shop: S\n"))
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(config.PartnerConfig{UserAgent: "market-test/1.0", MaxDocumentBytes: 1024, FetchTimeout: time.Second})
	body, err := fetcher.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "shop: S\n", string(body))
	assert.Equal(t, "market-test/1.0", gotUA)
}

func TestHTTPFetcherFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/large":
			_, _ = w.Write([]byte(strings.Repeat("a", 64)))
		case "/slow":
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		}
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(config.PartnerConfig{MaxDocumentBytes: 32, FetchTimeout: 100 * time.Millisecond})
	for _, path := range []string{"/missing", "/large", "/slow"} {
		_, err := fetcher.Fetch(context.Background(), srv.URL+path)
		require.Error(t, err, path)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed, path)
		assert.Equal(t, pkgerrors.CodeFetch, typed.Code(), path)
		assert.True(t, pkgerrors.MetadataFor(typed.Code()).Retryable)
	}
}

type fakeObjects struct {
	bucket, object string
	body           []byte
	err            error
}

func (f *fakeObjects) ReadObject(_ context.Context, bucket, object string, _ int64) ([]byte, error) {
	f.bucket, f.object = bucket, object
	return f.body, f.err
}

func TestObjectFetcherReadsBucketObject(t *testing.T) {
	objects := &fakeObjects{body: []byte("shop: S\n")}
	fetcher := NewObjectFetcher(objects, config.PartnerConfig{})

	body, err := fetcher.Fetch(context.Background(), "gs://price-lists/partners/s.yaml")
	require.NoError(t, err)
	assert.Equal(t, "shop: S\n", string(body))
	assert.Equal(t, "price-lists", objects.bucket)
	assert.Equal(t, "partners/s.yaml", objects.object)
}

func TestObjectFetcherMapsErrors(t *testing.T) {
	cases := map[string]struct {
		url  string
		err  error
		code pkgerrors.Code
	}{
		"missing object": {url: "gs://b/a.yaml", err: gcs.ErrObjectNotFound, code: pkgerrors.CodeFetch},
		"too large":      {url: "gs://b/a.yaml", err: gcs.ErrObjectTooLarge, code: pkgerrors.CodeFetch},
		"no object path": {url: "gs://b", code: pkgerrors.CodeValidation},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			fetcher := NewObjectFetcher(&fakeObjects{err: tc.err}, config.PartnerConfig{})
			_, err := fetcher.Fetch(context.Background(), tc.url)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, tc.code, typed.Code())
		})
	}
}

func TestSchemeFetcherRoutesByScheme(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("web"))
	}))
	defer srv.Close()

	web := NewHTTPFetcher(config.PartnerConfig{FetchTimeout: time.Second})
	routed := NewSchemeFetcher(web, NewObjectFetcher(&fakeObjects{body: []byte("bucket")}, config.PartnerConfig{}))

	body, err := routed.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "web", string(body))

	body, err = routed.Fetch(context.Background(), "gs://b/a.yaml")
	require.NoError(t, err)
	assert.Equal(t, "bucket", string(body))

	webOnly := NewSchemeFetcher(web, nil)
	_, err = webOnly.Fetch(context.Background(), "gs://b/a.yaml")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

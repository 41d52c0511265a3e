package writer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/marketplace-backend/internal/analytics/types"
)

type insertCall struct {
	table string
	rows  []any
}

type fakeInserter struct {
	responses []error
	calls     []insertCall
}

func (f *fakeInserter) InsertRows(_ context.Context, table string, rows []any) error {
	f.calls = append(f.calls, insertCall{table: table, rows: rows})
	if len(f.calls) <= len(f.responses) {
		return f.responses[len(f.calls)-1]
	}
	return nil
}

func newTestWriter(t *testing.T, batch int, responses ...error) (*BigQueryWriter, *fakeInserter) {
	t.Helper()
	fake := &fakeInserter{responses: responses}
	w, err := New(fake, Config{
		MarketplaceTable: "marketplace_events",
		BatchSize:        batch,
		RetryPolicy:      RetryPolicy{InitialBackoff: time.Millisecond, MaximumBackoff: time.Millisecond},
	})
	require.NoError(t, err)
	return w, fake
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, Config{MarketplaceTable: "t"})
	assert.Error(t, err)
	_, err = New(&fakeInserter{}, Config{MarketplaceTable: " "})
	assert.Error(t, err)
}

func TestInsertUsesEventIDAsInsertID(t *testing.T) {
	w, fake := newTestWriter(t, 1)

	require.NoError(t, w.InsertMarketplace(context.Background(), types.MarketplaceEventRow{EventID: "evt-1"}))
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "marketplace_events", fake.calls[0].table)

	saver, ok := fake.calls[0].rows[0].(*cbigquery.StructSaver)
	require.True(t, ok)
	assert.Equal(t, "evt-1", saver.InsertID)
}

func TestInsertRetriesTransientErrors(t *testing.T) {
	w, fake := newTestWriter(t, 1, &googleapi.Error{Code: http.StatusServiceUnavailable}, nil)

	require.NoError(t, w.InsertMarketplace(context.Background(), types.MarketplaceEventRow{EventID: "1"}))
	assert.Len(t, fake.calls, 2)
	assert.Empty(t, w.pending)
}

func TestInsertStopsOnPermanentErrorAndKeepsRows(t *testing.T) {
	w, fake := newTestWriter(t, 1, &googleapi.Error{Code: http.StatusBadRequest})

	assert.Error(t, w.InsertMarketplace(context.Background(), types.MarketplaceEventRow{EventID: "1"}))
	assert.Len(t, fake.calls, 1)
	assert.Len(t, w.pending, 1)
}

func TestInsertGivesUpAfterMaxAttempts(t *testing.T) {
	unavailable := &googleapi.Error{Code: http.StatusServiceUnavailable}
	w, fake := newTestWriter(t, 1, unavailable, unavailable, unavailable, unavailable)

	err := w.InsertMarketplace(context.Background(), types.MarketplaceEventRow{EventID: "1"})
	require.Error(t, err)
	assert.Len(t, fake.calls, defaultMaxAttempts)
}

func TestBatchingAndFlush(t *testing.T) {
	w, fake := newTestWriter(t, 2)
	ctx := context.Background()

	require.NoError(t, w.InsertMarketplace(ctx, types.MarketplaceEventRow{EventID: "1"}))
	assert.Empty(t, fake.calls)
	require.NoError(t, w.InsertMarketplace(ctx, types.MarketplaceEventRow{EventID: "2"}))
	require.Len(t, fake.calls, 1)
	assert.Len(t, fake.calls[0].rows, 2)

	require.NoError(t, w.InsertMarketplace(ctx, types.MarketplaceEventRow{EventID: "3"}))
	require.NoError(t, w.Flush(ctx))
	assert.Len(t, fake.calls, 2)
	require.NoError(t, w.Flush(ctx))
	assert.Len(t, fake.calls, 2)
}

func TestRetryableClassification(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"nil":          {err: nil, want: false},
		"plain":        {err: errors.New("boom"), want: false},
		"http 503":     {err: &googleapi.Error{Code: http.StatusServiceUnavailable}, want: true},
		"http 400":     {err: &googleapi.Error{Code: http.StatusBadRequest}, want: false},
		"deadline":     {err: context.DeadlineExceeded, want: true},
		"backend rows": {err: cbigquery.PutMultiError{{Errors: cbigquery.MultiError{&cbigquery.Error{Reason: "backendError"}}}}, want: true},
		"mixed rows": {err: cbigquery.PutMultiError{
			{Errors: cbigquery.MultiError{&cbigquery.Error{Reason: "backendError"}}},
			{Errors: cbigquery.MultiError{&cbigquery.Error{Reason: "invalid"}}},
		}, want: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, retryable(tc.err))
		})
	}
}

func TestEncodeJSON(t *testing.T) {
	nj, err := EncodeJSON(map[string]any{"foo": "bar"})
	require.NoError(t, err)
	assert.True(t, nj.Valid)
	assert.JSONEq(t, `{"foo":"bar"}`, nj.JSONVal)

	nj, err = EncodeJSON(nil)
	require.NoError(t, err)
	assert.False(t, nj.Valid)

	raw := json.RawMessage(`{"foo":"baz"}`)
	nj, err = EncodeJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, string(raw), nj.JSONVal)

	nj, err = EncodeJSON([]byte{})
	require.NoError(t, err)
	assert.False(t, nj.Valid)
}

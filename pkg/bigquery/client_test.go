package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
)

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, config.GCPConfig{}, config.BigQueryConfig{Dataset: "d", MarketplaceEventsTable: "t"}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{MarketplaceEventsTable: "t"}, nil)
	require.ErrorIs(t, err, errDatasetRequired)

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: "d", MarketplaceEventsTable: " "}, nil)
	require.ErrorIs(t, err, errTableNameRequired)
}

func TestDescribeLookup(t *testing.T) {
	assert.NoError(t, describeLookup("table", "events", nil))

	notFound := fmt.Errorf("lookup: %w", &googleapi.Error{Code: http.StatusNotFound})
	assert.EqualError(t, describeLookup("dataset", "marketplace", notFound), `dataset "marketplace" does not exist`)

	denied := &googleapi.Error{Code: http.StatusForbidden}
	err := describeLookup("table", "events", denied)
	assert.ErrorIs(t, err, denied)
	assert.Contains(t, err.Error(), `checking table "events"`)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&googleapi.Error{Code: http.StatusNotFound}))
	assert.False(t, isNotFound(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, isNotFound(errors.New("plain")))
}

func TestNilClientReportsNotInitialized(t *testing.T) {
	var c *Client
	assert.ErrorIs(t, c.InsertRows(context.Background(), "t", []any{1}), errClientNotInitialized)
	assert.ErrorIs(t, c.Ping(context.Background()), errClientNotInitialized)
	assert.Equal(t, "", c.MarketplaceEventsTable())
	assert.NoError(t, c.Close())
}

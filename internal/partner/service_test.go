package partner

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type stubFetcher struct {
	body []byte
	err  error
	urls []string
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	s.urls = append(s.urls, url)
	return s.body, s.err
}

type importFixture struct {
	conn    *gorm.DB
	svc     Service
	fetcher *stubFetcher
	reg     *prometheus.Registry
	owner   *models.User
}

func newImportFixture(t *testing.T) *importFixture {
	t.Helper()
	conn := dbtest.Open(t)
	reg := prometheus.NewRegistry()
	fetcher := &stubFetcher{}
	svc, err := NewService(ServiceParams{
		DB:      db.Wrap(conn),
		Fetcher: fetcher,
		Outbox:  outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		Metrics: metrics.NewPartnerImportMetrics(reg),
		Logger:  logger.Nop(),
	})
	require.NoError(t, err)
	return &importFixture{
		conn:    conn,
		svc:     svc,
		fetcher: fetcher,
		reg:     reg,
		owner:   dbtest.CreateUser(t, conn, enums.UserTypeShop),
	}
}

func (f *importFixture) listingCount(t *testing.T, shopID uuid.UUID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.ProductInfo{}).Where("shop_id = ?", shopID).Count(&count).Error)
	return count
}

func TestImportCreatesShopCatalogAndEvent(t *testing.T) {
	f := newImportFixture(t)
	f.fetcher.body = loadFixture(t)

	res, err := f.svc.Import(context.Background(), f.owner.ID, enums.UserTypeShop, ImportRequest{URL: "https://partner.example.com/shop1.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "Connected", res.ShopName)
	assert.Equal(t, 2, res.Categories)
	assert.Equal(t, 3, res.Listings)

	var shop models.Shop
	require.NoError(t, f.conn.Preload("Categories").First(&shop, "user_id = ?", f.owner.ID).Error)
	assert.True(t, shop.State)
	require.NotNil(t, shop.URL)
	assert.Equal(t, "https://partner.example.com/shop1.yaml", *shop.URL)
	assert.Len(t, shop.Categories, 2)
	assert.EqualValues(t, 3, f.listingCount(t, shop.ID))

	var params int64
	require.NoError(t, f.conn.Model(&models.ProductParameter{}).Count(&params).Error)
	assert.EqualValues(t, 6, params)

	events, err := outbox.NewRepository(f.conn).ListByAggregate(shop.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventPartnerCatalogImported, events[0].EventType)

	assert.Equal(t, 1.0, importRuns(t, f.reg, metrics.OutcomeSuccess, ""))
}

func TestReimportReplacesListings(t *testing.T) {
	f := newImportFixture(t)
	f.fetcher.body = loadFixture(t)
	first, err := f.svc.Import(context.Background(), f.owner.ID, enums.UserTypeShop, ImportRequest{URL: "https://partner.example.com/a.yaml"})
	require.NoError(t, err)

	f.fetcher.body = []byte(`
shop: Connected Outlet
categories: [{id: 1, name: Smartphones}]
goods:
  - {id: 9, category: 1, name: Refurbished phone, price: 100, price_rrc: 120, quantity: 2}
`)
	second, err := f.svc.Import(context.Background(), f.owner.ID, enums.UserTypeShop, ImportRequest{URL: "https://partner.example.com/b.yaml"})
	require.NoError(t, err)
	assert.Equal(t, first.ShopID, second.ShopID)
	assert.EqualValues(t, 3, second.Replaced)
	assert.EqualValues(t, 1, f.listingCount(t, second.ShopID))

	var categories int64
	require.NoError(t, f.conn.Model(&models.Category{}).Where("name = ?", "Smartphones").Count(&categories).Error)
	assert.EqualValues(t, 1, categories)

	var orphanParams int64
	require.NoError(t, f.conn.Model(&models.ProductParameter{}).Count(&orphanParams).Error)
	assert.EqualValues(t, 0, orphanParams)
}

func (f *importFixture) listingIDs(t *testing.T, shopID uuid.UUID) []uuid.UUID {
	t.Helper()
	var ids []uuid.UUID
	require.NoError(t, f.conn.Model(&models.ProductInfo{}).
		Where("shop_id = ? AND retired_at IS NULL", shopID).
		Order("external_id").
		Pluck("id", &ids).Error)
	return ids
}

// orderListing puts listing on an order of a fresh buyer in the given status.
func (f *importFixture) orderListing(t *testing.T, listingID uuid.UUID, status enums.OrderStatus) uuid.UUID {
	t.Helper()
	buyer := dbtest.CreateUser(t, f.conn, enums.UserTypeBuyer)
	order := &models.Order{UserID: buyer.ID, Status: status}
	require.NoError(t, f.conn.Omit(clause.Associations).Create(order).Error)
	item := &models.OrderItem{OrderID: order.ID, ProductInfoID: listingID, Quantity: 1}
	require.NoError(t, f.conn.Omit(clause.Associations).Create(item).Error)
	return order.ID
}

func TestReimportRetiresOrderedListings(t *testing.T) {
	f := newImportFixture(t)
	f.fetcher.body = loadFixture(t)
	first, err := f.svc.Import(context.Background(), f.owner.ID, enums.UserTypeShop, ImportRequest{URL: "https://partner.example.com/a.yaml"})
	require.NoError(t, err)
	before := f.listingIDs(t, first.ShopID)
	require.Len(t, before, 3)

	placedID := f.orderListing(t, before[0], enums.OrderStatusNew)
	basketID := f.orderListing(t, before[1], enums.OrderStatusBasket)

	// same document again: identical external ids must not collide with the retired row
	second, err := f.svc.Import(context.Background(), f.owner.ID, enums.UserTypeShop, ImportRequest{URL: "https://partner.example.com/a.yaml"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, second.Replaced)
	assert.Len(t, f.listingIDs(t, first.ShopID), 3)
	assert.NotContains(t, f.listingIDs(t, first.ShopID), before[0])

	var retired models.ProductInfo
	require.NoError(t, f.conn.First(&retired, "id = ?", before[0]).Error)
	require.NotNil(t, retired.RetiredAt)

	var kept int64
	require.NoError(t, f.conn.Model(&models.ProductParameter{}).Where("product_info_id = ?", before[0]).Count(&kept).Error)
	assert.EqualValues(t, 4, kept)

	var placedLines, basketLines int64
	require.NoError(t, f.conn.Model(&models.OrderItem{}).Where("order_id = ?", placedID).Count(&placedLines).Error)
	require.NoError(t, f.conn.Model(&models.OrderItem{}).Where("order_id = ?", basketID).Count(&basketLines).Error)
	assert.EqualValues(t, 1, placedLines)
	assert.Zero(t, basketLines)

	var gone int64
	require.NoError(t, f.conn.Model(&models.ProductInfo{}).Where("id IN ?", before[1:]).Count(&gone).Error)
	assert.Zero(t, gone)
}

func TestImportFailureInsideTransactionKeepsPreviousCatalog(t *testing.T) {
	f := newImportFixture(t)
	f.fetcher.body = loadFixture(t)
	first, err := f.svc.Import(context.Background(), f.owner.ID, enums.UserTypeShop, ImportRequest{URL: "https://partner.example.com/a.yaml"})
	require.NoError(t, err)
	before := f.listingIDs(t, first.ShopID)

	// old listings are already gone inside the transaction when parameters fail
	require.NoError(t, f.conn.Callback().Create().Before("gorm:create").Register("test:fail_parameters", func(tx *gorm.DB) {
		if tx.Statement.Table == "product_parameters" {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))

	_, err = f.svc.Import(context.Background(), f.owner.ID, enums.UserTypeShop, ImportRequest{URL: "https://partner.example.com/b.yaml"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInternal, pkgerrors.As(err).Code())

	assert.Equal(t, before, f.listingIDs(t, first.ShopID))
	var params int64
	require.NoError(t, f.conn.Model(&models.ProductParameter{}).Where("product_info_id IN ?", before).Count(&params).Error)
	assert.EqualValues(t, 6, params)

	var shop models.Shop
	require.NoError(t, f.conn.First(&shop, "id = ?", first.ShopID).Error)
	assert.Equal(t, "https://partner.example.com/a.yaml", *shop.URL)

	events, err := outbox.NewRepository(f.conn).ListByAggregate(first.ShopID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, 1.0, importRuns(t, f.reg, metrics.OutcomeFailure, "internal_error"))
}

func TestImportMalformedDocumentKeepsPreviousListings(t *testing.T) {
	f := newImportFixture(t)
	f.fetcher.body = loadFixture(t)
	first, err := f.svc.Import(context.Background(), f.owner.ID, enums.UserTypeShop, ImportRequest{URL: "https://partner.example.com/a.yaml"})
	require.NoError(t, err)

	f.fetcher.body = []byte(`
shop: Connected
categories: [{id: 1, name: Smartphones}]
goods:
  - {id: 9, category: 1, name: Broken, price: -1, price_rrc: 120, quantity: 2}
`)
	_, err = f.svc.Import(context.Background(), f.owner.ID, enums.UserTypeShop, ImportRequest{URL: "https://partner.example.com/b.yaml"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	assert.EqualValues(t, 3, f.listingCount(t, first.ShopID))
	assert.Equal(t, 1.0, importRuns(t, f.reg, metrics.OutcomeFailure, "validation_error"))
}

func TestImportRejectsBuyerAndBadURL(t *testing.T) {
	f := newImportFixture(t)

	_, err := f.svc.Import(context.Background(), f.owner.ID, enums.UserTypeBuyer, ImportRequest{URL: "https://partner.example.com/a.yaml"})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())

	_, err = f.svc.Import(context.Background(), f.owner.ID, enums.UserTypeShop, ImportRequest{URL: "ftp://partner.example.com/a.yaml"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	assert.Empty(t, f.fetcher.urls)
}

func TestImportFetchErrorIsRetryable(t *testing.T) {
	f := newImportFixture(t)
	f.fetcher.err = errors.New("connection reset")

	_, err := f.svc.Import(context.Background(), f.owner.ID, enums.UserTypeShop, ImportRequest{URL: "https://partner.example.com/a.yaml"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeFetch, pkgerrors.As(err).Code())
}

func importRuns(t *testing.T, reg *prometheus.Registry, outcome, reason string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "partner_import_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			values := map[string]string{}
			for _, lp := range m.GetLabel() {
				values[lp.GetName()] = lp.GetValue()
			}
			if values["outcome"] == outcome && values["reason"] == reason {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

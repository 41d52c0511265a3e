package basket

import (
	"context"
	"sync"
	"testing"

	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type basketFixture struct {
	conn     *gorm.DB
	svc      Service
	buyer    *models.User
	shop     *models.Shop
	listings []models.ProductInfo
}

func newBasketFixture(t *testing.T) *basketFixture {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(db.Wrap(conn))
	require.NoError(t, err)
	owner := dbtest.CreateUser(t, conn, enums.UserTypeShop)
	shop, listings := dbtest.CreateShopWithListings(t, conn, owner, 3)
	return &basketFixture{
		conn:     conn,
		svc:      svc,
		buyer:    dbtest.CreateUser(t, conn, enums.UserTypeBuyer),
		shop:     shop,
		listings: listings,
	}
}

func (f *basketFixture) basketCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.Order{}).
		Where("user_id = ? AND status = ?", f.buyer.ID, enums.OrderStatusBasket).
		Count(&count).Error)
	return count
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code())
	return typed
}

func TestGetWithoutBasketIsEmptyAndCreatesNothing(t *testing.T) {
	f := newBasketFixture(t)

	view, err := f.svc.Get(context.Background(), f.buyer.ID)
	require.NoError(t, err)
	assert.Nil(t, view.ID)
	assert.Equal(t, enums.OrderStatusBasket, view.Status)
	assert.Empty(t, view.Items)
	assert.True(t, view.Total.IsZero())
	assert.Zero(t, f.basketCount(t))
}

func TestAddItemsCreatesBasketAndTotals(t *testing.T) {
	f := newBasketFixture(t)
	ctx := context.Background()

	view, err := f.svc.AddItems(ctx, f.buyer.ID, AddItemsRequest{Items: []AddItem{
		{ProductInfoID: f.listings[0].ID.String(), Quantity: 2},
		{ProductInfoID: f.listings[1].ID.String(), Quantity: 1},
	}})
	require.NoError(t, err)
	require.NotNil(t, view.ID)
	require.Len(t, view.Items, 2)
	assert.Equal(t, 3, view.TotalQuantity)
	// 2*10 + 1*20
	assert.True(t, decimal.NewFromInt(40).Equal(view.Total), "total %s", view.Total)
	assert.Equal(t, f.shop.Name, view.Items[0].Shop.Name)
	assert.Len(t, view.Items[0].Parameters, 1)
	assert.EqualValues(t, 1, f.basketCount(t))

	got, err := f.svc.Get(ctx, f.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, *view.ID, *got.ID)
	assert.True(t, view.Total.Equal(got.Total))
}

func TestAddItemsExistingListingSetsQuantity(t *testing.T) {
	f := newBasketFixture(t)
	ctx := context.Background()
	id := f.listings[0].ID.String()

	_, err := f.svc.AddItems(ctx, f.buyer.ID, AddItemsRequest{Items: []AddItem{{ProductInfoID: id, Quantity: 2}}})
	require.NoError(t, err)
	view, err := f.svc.AddItems(ctx, f.buyer.ID, AddItemsRequest{Items: []AddItem{{ProductInfoID: id, Quantity: 5}}})
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
}

func TestAddItemsRejectsWholeBatch(t *testing.T) {
	f := newBasketFixture(t)

	_, err := f.svc.AddItems(context.Background(), f.buyer.ID, AddItemsRequest{Items: []AddItem{
		{ProductInfoID: f.listings[0].ID.String(), Quantity: 1},
		{ProductInfoID: uuid.NewString(), Quantity: 1},
	}})
	typed := requireCode(t, err, pkgerrors.CodeValidation)
	assert.Contains(t, typed.Details(), "items[1].product_info")

	var items int64
	require.NoError(t, f.conn.Model(&models.OrderItem{}).Count(&items).Error)
	assert.Zero(t, items)
}

func TestAddItemsValidatesInput(t *testing.T) {
	f := newBasketFixture(t)
	ctx := context.Background()

	cases := map[string]AddItemsRequest{
		"empty":    {},
		"bad id":   {Items: []AddItem{{ProductInfoID: "nope", Quantity: 1}}},
		"zero qty": {Items: []AddItem{{ProductInfoID: f.listings[0].ID.String(), Quantity: 0}}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.AddItems(ctx, f.buyer.ID, req)
			requireCode(t, err, pkgerrors.CodeValidation)
		})
	}
	assert.Zero(t, f.basketCount(t))
}

func TestAddItemsRejectsClosedShop(t *testing.T) {
	f := newBasketFixture(t)
	require.NoError(t, f.conn.Model(&models.Shop{}).Where("id = ?", f.shop.ID).Update("state", false).Error)

	_, err := f.svc.AddItems(context.Background(), f.buyer.ID, AddItemsRequest{Items: []AddItem{
		{ProductInfoID: f.listings[0].ID.String(), Quantity: 1},
	}})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestUpdateAndRemoveItems(t *testing.T) {
	f := newBasketFixture(t)
	ctx := context.Background()

	view, err := f.svc.AddItems(ctx, f.buyer.ID, AddItemsRequest{Items: []AddItem{
		{ProductInfoID: f.listings[0].ID.String(), Quantity: 1},
		{ProductInfoID: f.listings[2].ID.String(), Quantity: 1},
	}})
	require.NoError(t, err)
	first, second := view.Items[0].ID, view.Items[1].ID

	view, err = f.svc.UpdateItems(ctx, f.buyer.ID, UpdateItemsRequest{Items: []UpdateItem{
		{ID: first.String(), Quantity: 4},
		{ID: uuid.NewString(), Quantity: 9},
	}})
	require.NoError(t, err)
	assert.Equal(t, 5, view.TotalQuantity)
	// 4*10 + 1*30
	assert.True(t, decimal.NewFromInt(70).Equal(view.Total), "total %s", view.Total)

	view, err = f.svc.RemoveItems(ctx, f.buyer.ID, []uuid.UUID{second, uuid.New()})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, first, view.Items[0].ID)

	_, err = f.svc.RemoveItems(ctx, f.buyer.ID, nil)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestUpdateIgnoresOtherUsersLines(t *testing.T) {
	f := newBasketFixture(t)
	ctx := context.Background()
	other := dbtest.CreateUser(t, f.conn, enums.UserTypeBuyer)

	theirs, err := f.svc.AddItems(ctx, other.ID, AddItemsRequest{Items: []AddItem{
		{ProductInfoID: f.listings[0].ID.String(), Quantity: 1},
	}})
	require.NoError(t, err)
	_, err = f.svc.AddItems(ctx, f.buyer.ID, AddItemsRequest{Items: []AddItem{
		{ProductInfoID: f.listings[1].ID.String(), Quantity: 1},
	}})
	require.NoError(t, err)

	_, err = f.svc.UpdateItems(ctx, f.buyer.ID, UpdateItemsRequest{Items: []UpdateItem{
		{ID: theirs.Items[0].ID.String(), Quantity: 7},
	}})
	require.NoError(t, err)
	_, err = f.svc.RemoveItems(ctx, f.buyer.ID, []uuid.UUID{theirs.Items[0].ID})
	require.NoError(t, err)

	view, err := f.svc.Get(ctx, other.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 1, view.Items[0].Quantity)
}

func TestConcurrentAddItemsCreatesOneBasket(t *testing.T) {
	f := newBasketFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, len(f.listings))
	for i, listing := range f.listings {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.svc.AddItems(ctx, f.buyer.ID, AddItemsRequest{Items: []AddItem{
				{ProductInfoID: id.String(), Quantity: 1},
			}})
		}(i, listing.ID)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, f.basketCount(t))

	view, err := f.svc.Get(ctx, f.buyer.ID)
	require.NoError(t, err)
	assert.Len(t, view.Items, len(f.listings))
}

package dbtest

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

func TestOpenEnforcesForeignKeys(t *testing.T) {
	conn := Open(t)

	err := conn.Create(&models.Contact{UserID: uuid.New(), City: gofakeit.City(), Street: "Main", Phone: "1"}).Error
	assert.Error(t, err)
}

func TestOpenMirrorsDeleteActions(t *testing.T) {
	conn := Open(t)
	buyer := CreateUser(t, conn, enums.UserTypeBuyer)
	contact := CreateContact(t, conn, buyer)
	_, listings := CreateShopWithListings(t, conn, CreateUser(t, conn, enums.UserTypeShop), 1)

	order := &models.Order{UserID: buyer.ID, Status: enums.OrderStatusNew, ContactID: &contact.ID}
	require.NoError(t, conn.Omit(clause.Associations).Create(order).Error)
	item := &models.OrderItem{OrderID: order.ID, ProductInfoID: listings[0].ID, Quantity: 1}
	require.NoError(t, conn.Omit(clause.Associations).Create(item).Error)

	// ordered listings are protected
	assert.Error(t, conn.Delete(&models.ProductInfo{}, "id = ?", listings[0].ID).Error)

	require.NoError(t, conn.Delete(&models.Contact{}, "id = ?", contact.ID).Error)
	var stored models.Order
	require.NoError(t, conn.First(&stored, "id = ?", order.ID).Error)
	assert.Nil(t, stored.ContactID)

	require.NoError(t, conn.Delete(&models.Order{}, "id = ?", order.ID).Error)
	var lines int64
	require.NoError(t, conn.Model(&models.OrderItem{}).Where("order_id = ?", order.ID).Count(&lines).Error)
	assert.Zero(t, lines)
}

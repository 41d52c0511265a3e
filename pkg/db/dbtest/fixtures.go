package dbtest

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// CreateUser inserts an active user of the given type with fake profile data.
func CreateUser(t testing.TB, conn *gorm.DB, userType enums.UserType) *models.User {
	t.Helper()
	user := &models.User{
		Email:        gofakeit.Email(),
		PasswordHash: "not-a-real-hash",
		FirstName:    gofakeit.FirstName(),
		LastName:     gofakeit.LastName(),
		Company:      gofakeit.Company(),
		Type:         userType,
		IsActive:     true,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// CreateContact inserts a delivery contact owned by user.
func CreateContact(t testing.TB, conn *gorm.DB, user *models.User) *models.Contact {
	t.Helper()
	contact := &models.Contact{
		UserID: user.ID,
		City:   gofakeit.City(),
		Street: gofakeit.StreetName(),
		House:  gofakeit.StreetNumber(),
		Phone:  gofakeit.Phone(),
	}
	if err := conn.Create(contact).Error; err != nil {
		t.Fatalf("create contact: %v", err)
	}
	return contact
}

// CreateShopWithListings inserts an accepting shop for owner with n listings
// in a single fresh category. Listing i is priced at 10*(i+1).
func CreateShopWithListings(t testing.TB, conn *gorm.DB, owner *models.User, n int) (*models.Shop, []models.ProductInfo) {
	t.Helper()
	shop := &models.Shop{UserID: owner.ID, Name: gofakeit.Company(), State: true}
	if err := conn.Create(shop).Error; err != nil {
		t.Fatalf("create shop: %v", err)
	}
	category := &models.Category{Name: gofakeit.UUID()}
	if err := conn.Create(category).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	if err := conn.Create(&models.ShopCategory{ShopID: shop.ID, CategoryID: category.ID}).Error; err != nil {
		t.Fatalf("link category: %v", err)
	}
	color := &models.Parameter{Name: "Color " + gofakeit.UUID()}
	if err := conn.Create(color).Error; err != nil {
		t.Fatalf("create parameter: %v", err)
	}

	infos := make([]models.ProductInfo, 0, n)
	for i := 0; i < n; i++ {
		product := &models.Product{Name: gofakeit.ProductName() + " " + gofakeit.UUID(), CategoryID: category.ID}
		if err := conn.Create(product).Error; err != nil {
			t.Fatalf("create product: %v", err)
		}
		price := decimal.NewFromInt(int64(10 * (i + 1)))
		info := models.ProductInfo{
			ProductID:  product.ID,
			ShopID:     shop.ID,
			ExternalID: int64(1000 + i),
			Model:      gofakeit.Word(),
			Price:      price,
			PriceRRC:   price.Add(decimal.NewFromInt(5)),
			Quantity:   10,
		}
		if err := conn.Create(&info).Error; err != nil {
			t.Fatalf("create product info: %v", err)
		}
		param := models.ProductParameter{ProductInfoID: info.ID, ParameterID: color.ID, Value: gofakeit.Color()}
		if err := conn.Create(&param).Error; err != nil {
			t.Fatalf("create product parameter: %v", err)
		}
		infos = append(infos, info)
	}
	return shop, infos
}

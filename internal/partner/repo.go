package partner

import (
	"context"
	"time"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository writes a shop's catalog. It is always bound to the import transaction.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UpsertShop creates the owner's shop or refreshes its name and source url.
// The accepting-orders flag is left as the partner set it.
func (r *Repository) UpsertShop(ctx context.Context, ownerID uuid.UUID, name, sourceURL string) (*models.Shop, error) {
	var shop models.Shop
	err := r.db.WithContext(ctx).Where("user_id = ?", ownerID).First(&shop).Error
	switch {
	case err == nil:
		if err := r.db.WithContext(ctx).Model(&shop).Updates(map[string]any{"name": name, "url": sourceURL}).Error; err != nil {
			return nil, err
		}
		shop.Name = name
		shop.URL = &sourceURL
		return &shop, nil
	case err == gorm.ErrRecordNotFound:
		shop = models.Shop{UserID: ownerID, Name: name, URL: &sourceURL, State: true}
		if err := r.db.WithContext(ctx).Create(&shop).Error; err != nil {
			return nil, err
		}
		return &shop, nil
	default:
		return nil, err
	}
}

// EnsureCategory returns the category with this name, creating it when absent.
// Concurrent imports of other shops may race on the insert; the conflict is
// absorbed and the winner's row is read back.
func (r *Repository) EnsureCategory(ctx context.Context, name string) (*models.Category, error) {
	candidate := models.Category{Name: name}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&candidate).Error; err != nil {
		return nil, err
	}
	var category models.Category
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *Repository) LinkCategory(ctx context.Context, shopID, categoryID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ShopCategory{ShopID: shopID, CategoryID: categoryID}).Error
}

func (r *Repository) EnsureProduct(ctx context.Context, name string, categoryID uuid.UUID) (*models.Product, error) {
	candidate := models.Product{Name: name, CategoryID: categoryID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}, {Name: "category_id"}}, DoNothing: true}).
		Create(&candidate).Error; err != nil {
		return nil, err
	}
	var product models.Product
	if err := r.db.WithContext(ctx).
		Where("name = ? AND category_id = ?", name, categoryID).
		First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) EnsureParameter(ctx context.Context, name string) (*models.Parameter, error) {
	candidate := models.Parameter{Name: name}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&candidate).Error; err != nil {
		return nil, err
	}
	var parameter models.Parameter
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&parameter).Error; err != nil {
		return nil, err
	}
	return &parameter, nil
}

// RetireListings takes the shop's live listings out of the catalog ahead of
// a new import and reports how many it replaced. Basket lines on them are
// dropped. Listings a placed order still points to are stamped retired_at;
// the rest are deleted together with their parameters.
func (r *Repository) RetireListings(ctx context.Context, shopID uuid.UUID, at time.Time) (int64, error) {
	q := r.db.WithContext(ctx)
	live := q.Model(&models.ProductInfo{}).Select("id").Where("shop_id = ? AND retired_at IS NULL", shopID)

	baskets := q.Model(&models.Order{}).Select("id").Where("status = ?", enums.OrderStatusBasket)
	if err := q.Where("product_info_id IN (?) AND order_id IN (?)", live, baskets).
		Delete(&models.OrderItem{}).Error; err != nil {
		return 0, err
	}

	ordered := q.Model(&models.OrderItem{}).Select("product_info_id")
	retired := q.Model(&models.ProductInfo{}).
		Where("shop_id = ? AND retired_at IS NULL AND id IN (?)", shopID, ordered).
		UpdateColumn("retired_at", at)
	if retired.Error != nil {
		return 0, retired.Error
	}

	if err := q.Where("product_info_id IN (?)", live).Delete(&models.ProductParameter{}).Error; err != nil {
		return 0, err
	}
	deleted := q.Where("shop_id = ? AND retired_at IS NULL", shopID).Delete(&models.ProductInfo{})
	if deleted.Error != nil {
		return 0, deleted.Error
	}
	return retired.RowsAffected + deleted.RowsAffected, nil
}

func (r *Repository) CreateListing(ctx context.Context, info *models.ProductInfo) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(info).Error
}

func (r *Repository) CreateParameters(ctx context.Context, params []models.ProductParameter) error {
	if len(params) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(&params).Error
}

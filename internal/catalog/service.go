package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service serves public catalog reads and the partner shop state toggle.
type Service interface {
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	ListShops(ctx context.Context) ([]ShopDTO, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]ProductDTO, error)
	GetShopState(ctx context.Context, ownerID uuid.UUID) (*ShopDTO, error)
	SetShopState(ctx context.Context, ownerID uuid.UUID, state bool) (*ShopDTO, error)
}

type repository interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListActiveShops(ctx context.Context) ([]models.Shop, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]models.ProductInfo, error)
	FindShopByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Shop, error)
	SetShopState(ctx context.Context, ownerID uuid.UUID, state bool) (int64, error)
}

type service struct {
	repo repository
}

func NewService(repo repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, categoryFromModel(row))
	}
	return out, nil
}

func (s *service) ListShops(ctx context.Context) ([]ShopDTO, error) {
	rows, err := s.repo.ListActiveShops(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shops")
	}
	out := make([]ShopDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, shopFromModel(row))
	}
	return out, nil
}

func (s *service) ListProducts(ctx context.Context, filter ProductFilter) ([]ProductDTO, error) {
	rows, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ProductFromModel(row))
	}
	return out, nil
}

func (s *service) GetShopState(ctx context.Context, ownerID uuid.UUID) (*ShopDTO, error) {
	shop, err := s.repo.FindShopByOwner(ctx, ownerID)
	if err != nil {
		return nil, mapShopError(err)
	}
	dto := shopFromModel(*shop)
	return &dto, nil
}

func (s *service) SetShopState(ctx context.Context, ownerID uuid.UUID, state bool) (*ShopDTO, error) {
	updated, err := s.repo.SetShopState(ctx, ownerID, state)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update shop state")
	}
	if updated == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found; import a price list first")
	}
	return s.GetShopState(ctx, ownerID)
}

func mapShopError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "shop not found; import a price list first")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shop")
}

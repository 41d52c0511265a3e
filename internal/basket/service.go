package basket

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/marketplace-backend/internal/users"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service manages the caller's basket.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*View, error)
	AddItems(ctx context.Context, userID uuid.UUID, req AddItemsRequest) (*View, error)
	UpdateItems(ctx context.Context, userID uuid.UUID, req UpdateItemsRequest) (*View, error)
	RemoveItems(ctx context.Context, userID uuid.UUID, itemIDs []uuid.UUID) (*View, error)
}

type service struct {
	db db.TxRunner
}

func NewService(runner db.TxRunner) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("database client required")
	}
	return &service{db: runner}, nil
}

// Get renders the basket without creating one; a user with no basket sees an
// empty view.
func (s *service) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	var view *View
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		order, err := repo.FindBasket(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				empty := BuildView(nil, nil)
				view = &empty
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load basket")
		}
		view, err = render(ctx, repo, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) AddItems(ctx context.Context, userID uuid.UUID, req AddItemsRequest) (*View, error) {
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"items": "is required"})
	}

	details := map[string]string{}
	quantities := make(map[uuid.UUID]int, len(req.Items))
	order := make([]uuid.UUID, 0, len(req.Items))
	for i, item := range req.Items {
		id, err := uuid.Parse(strings.TrimSpace(item.ProductInfoID))
		if err != nil {
			details[fmt.Sprintf("items[%d].product_info", i)] = "must be a valid UUID"
			continue
		}
		if item.Quantity <= 0 {
			details[fmt.Sprintf("items[%d].quantity", i)] = "must be greater than 0"
			continue
		}
		if _, seen := quantities[id]; !seen {
			order = append(order, id)
		}
		// a listing repeated in one batch keeps its last quantity
		quantities[id] = item.Quantity
	}
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}

	var view *View
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		basket, err := lockAndGetOrCreate(ctx, tx, repo, userID)
		if err != nil {
			return err
		}

		listings, err := repo.FindListings(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load listings")
		}
		for i, id := range order {
			listing, ok := listings[id]
			if !ok {
				details[fmt.Sprintf("items[%d].product_info", i)] = "does not exist"
				continue
			}
			if listing.Shop != nil && !listing.Shop.State {
				details[fmt.Sprintf("items[%d].product_info", i)] = "shop is not accepting orders"
			}
		}
		if len(details) > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
		}

		for _, id := range order {
			if err := repo.UpsertItem(ctx, basket.ID, id, quantities[id]); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert basket item")
			}
		}
		if err := repo.Touch(ctx, basket.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "touch basket")
		}
		view, err = render(ctx, repo, basket)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// UpdateItems sets quantities on lines of the caller's basket. Lines that are
// not in the basket are skipped.
func (s *service) UpdateItems(ctx context.Context, userID uuid.UUID, req UpdateItemsRequest) (*View, error) {
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"items": "is required"})
	}
	details := map[string]string{}
	updates := make([]struct {
		id  uuid.UUID
		qty int
	}, 0, len(req.Items))
	for i, item := range req.Items {
		id, err := uuid.Parse(strings.TrimSpace(item.ID))
		if err != nil {
			details[fmt.Sprintf("items[%d].id", i)] = "must be a valid UUID"
			continue
		}
		if item.Quantity <= 0 {
			details[fmt.Sprintf("items[%d].quantity", i)] = "must be greater than 0"
			continue
		}
		updates = append(updates, struct {
			id  uuid.UUID
			qty int
		}{id, item.Quantity})
	}
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}

	return s.mutate(ctx, userID, func(repo *Repository, basket *models.Order) error {
		for _, u := range updates {
			if _, err := repo.UpdateItemQuantity(ctx, basket.ID, u.id, u.qty); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update basket item")
			}
		}
		return nil
	})
}

// RemoveItems deletes lines of the caller's basket; ids outside it are ignored.
func (s *service) RemoveItems(ctx context.Context, userID uuid.UUID, itemIDs []uuid.UUID) (*View, error) {
	if len(itemIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no valid ids supplied").
			WithDetails(map[string]string{"items": "must list at least one id"})
	}
	return s.mutate(ctx, userID, func(repo *Repository, basket *models.Order) error {
		if _, err := repo.DeleteItems(ctx, basket.ID, itemIDs); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete basket items")
		}
		return nil
	})
}

// mutate applies fn to an existing basket under the user lock. Without a
// basket there is nothing to change and an empty view is returned.
func (s *service) mutate(ctx context.Context, userID uuid.UUID, fn func(repo *Repository, basket *models.Order) error) (*View, error) {
	var view *View
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
		repo := NewRepository(tx)
		basket, err := repo.FindBasket(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				empty := BuildView(nil, nil)
				view = &empty
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load basket")
		}
		if err := fn(repo, basket); err != nil {
			return err
		}
		if err := repo.Touch(ctx, basket.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "touch basket")
		}
		view, err = render(ctx, repo, basket)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func lockUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	if _, err := users.NewRepository(tx).LockByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock user")
	}
	return nil
}

// lockAndGetOrCreate holds the user row lock so concurrent calls of one user
// never create a second basket.
func lockAndGetOrCreate(ctx context.Context, tx *gorm.DB, repo *Repository, userID uuid.UUID) (*models.Order, error) {
	if err := lockUser(ctx, tx, userID); err != nil {
		return nil, err
	}
	basket, err := repo.FindBasket(ctx, userID)
	if err == nil {
		return basket, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load basket")
	}
	basket, err = repo.CreateBasket(ctx, userID)
	if err != nil {
		if db.IsUniqueViolation(err, basketIndex) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "basket was created concurrently; retry")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create basket")
	}
	return basket, nil
}

func render(ctx context.Context, repo *Repository, order *models.Order) (*View, error) {
	items, err := repo.ListItems(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load basket items")
	}
	view := BuildView(order, items)
	return &view, nil
}

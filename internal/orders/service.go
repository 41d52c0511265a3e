package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/marketplace-backend/internal/basket"
	"github.com/angelmondragon/marketplace-backend/internal/catalog"
	"github.com/angelmondragon/marketplace-backend/internal/contacts"
	"github.com/angelmondragon/marketplace-backend/internal/notifications"
	"github.com/angelmondragon/marketplace-backend/internal/users"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service covers checkout, buyer order reads and shop-driven status changes.
type Service interface {
	PlaceOrder(ctx context.Context, userID, contactID uuid.UUID) (*OrderDetail, error)
	ListBuyerOrders(ctx context.Context, userID uuid.UUID, params ListParams) (*pagination.Page[OrderSummary], error)
	GetBuyerOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDetail, error)
	ListShopOrders(ctx context.Context, shopUserID uuid.UUID, params ListParams) (*pagination.Page[OrderDetail], error)
	TransitionStatus(ctx context.Context, shopUserID, orderID uuid.UUID, to enums.OrderStatus) (*TransitionResult, error)
}

type ServiceParams struct {
	DB      db.TxRunner
	Outbox  outbox.Emitter
	Metrics *metrics.OrderMetrics
	Logger  *logger.Logger
}

type service struct {
	db      db.TxRunner
	outbox  outbox.Emitter
	metrics *metrics.OrderMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		db:      params.DB,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// PlaceOrder converts the caller's basket into a new order delivered to one of
// the caller's contacts. Everything happens in one transaction under the user
// row lock, so a concurrent basket edit either lands before or after.
func (s *service) PlaceOrder(ctx context.Context, userID, contactID uuid.UUID) (*OrderDetail, error) {
	var detail *OrderDetail
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		buyer, err := users.NewRepository(tx).LockByID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeUnauthorized, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock user")
		}

		basketRepo := basket.NewRepository(tx)
		order, err := basketRepo.FindBasket(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeEmptyBasket, "basket is empty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load basket")
		}
		items, err := basketRepo.ListItems(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load basket items")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeEmptyBasket, "basket is empty")
		}

		contact, err := contacts.NewRepository(tx).FindOwned(ctx, userID, contactID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeContactNotFound, "contact not found").
					WithDetails(map[string]string{"contact": "does not exist"})
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load contact")
		}

		repo := NewRepository(tx)
		shops, err := repo.ListShops(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order shops")
		}
		closed := map[string]string{}
		for _, shop := range shops {
			if !shop.State {
				closed[shop.ID.String()] = fmt.Sprintf("shop %q is not accepting orders", shop.Name)
			}
		}
		if len(closed) > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "basket contains items from closed shops").WithDetails(closed)
		}

		placedAt := s.now()
		updated, err := repo.MarkPlaced(ctx, order.ID, contact.ID, placedAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "place order")
		}
		if updated == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "basket changed concurrently; retry")
		}
		order.Status = enums.OrderStatusNew
		order.ContactID = &contact.ID
		order.Contact = contact
		order.PlacedAt = &placedAt

		placed := detailFromModel(*order, items)
		if err := s.notifyPlaced(ctx, tx, buyer, order, shops); err != nil {
			return err
		}

		shopIDs := make([]uuid.UUID, 0, len(shops))
		for _, shop := range shops {
			shopIDs = append(shopIDs, shop.ID)
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Type: string(buyer.Type)},
			OccurredAt:    placedAt,
			Data: payloads.OrderPlacedEvent{
				OrderID:   order.ID,
				BuyerID:   userID,
				ContactID: contact.ID,
				ShopIDs:   shopIDs,
				ItemCount: len(placed.Items),
				Quantity:  placed.TotalQuantity,
				Total:     placed.Total,
				PlacedAt:  placedAt,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order placed")
		}
		detail = &placed
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(s.logg.WithUserID(ctx, userID.String()), detail.ID.String())
	s.logg.Info(logCtx, "order placed")
	return detail, nil
}

func (s *service) notifyPlaced(ctx context.Context, tx *gorm.DB, buyer *models.User, order *models.Order, shops []models.Shop) error {
	orderID := order.ID
	short := shortID(orderID)
	rows := []*models.Notification{{
		UserID:  buyer.ID,
		Type:    enums.NotificationTypeOrderPlaced,
		Title:   "Order placed",
		Message: fmt.Sprintf("Your order %s has been placed.", short),
		OrderID: &orderID,
	}}
	for _, shop := range shops {
		rows = append(rows, &models.Notification{
			UserID:  shop.UserID,
			Type:    enums.NotificationTypeOrderReceived,
			Title:   "New order",
			Message: fmt.Sprintf("Order %s contains products of %s.", short, shop.Name),
			OrderID: &orderID,
		})
	}
	if err := notifications.NewRepository(tx).Create(ctx, rows...); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order notifications")
	}
	return nil
}

func (s *service) ListBuyerOrders(ctx context.Context, userID uuid.UUID, params ListParams) (*pagination.Page[OrderSummary], error) {
	cursor, err := parseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	var page pagination.Page[OrderSummary]
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		rows, err := repo.ListBuyerOrders(ctx, userID, cursor, params.Limit)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
		}
		summaries := make([]OrderSummary, 0, len(rows))
		for _, row := range rows {
			items, err := repo.ListItems(ctx, row.ID, nil)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order items")
			}
			summaries = append(summaries, summaryFromModel(row, items))
		}
		page = pagination.Build(summaries, params.Limit, func(o OrderSummary) pagination.Cursor {
			return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *service) GetBuyerOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDetail, error) {
	var detail *OrderDetail
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		order, err := repo.FindBuyerOrder(ctx, userID, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		items, err := repo.ListItems(ctx, order.ID, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order items")
		}
		d := detailFromModel(*order, items)
		// status changes belong to shops
		d.AllowedStatus = []enums.OrderStatus{}
		detail = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// ListShopOrders lists placed orders with the shop's listings. Each order
// carries only that shop's lines and totals.
func (s *service) ListShopOrders(ctx context.Context, shopUserID uuid.UUID, params ListParams) (*pagination.Page[OrderDetail], error) {
	cursor, err := parseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	var page pagination.Page[OrderDetail]
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		shop, err := findShop(ctx, tx, shopUserID)
		if err != nil {
			return err
		}
		repo := NewRepository(tx)
		rows, err := repo.ListShopOrders(ctx, shop.ID, cursor, params.Limit)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shop orders")
		}
		details := make([]OrderDetail, 0, len(rows))
		created := make(map[uuid.UUID]time.Time, len(rows))
		for _, row := range rows {
			items, err := repo.ListItems(ctx, row.ID, &shop.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order items")
			}
			details = append(details, detailFromModel(row, items))
			created[row.ID] = row.CreatedAt
		}
		page = pagination.Build(details, params.Limit, func(o OrderDetail) pagination.Cursor {
			return pagination.Cursor{CreatedAt: created[*o.ID], ID: *o.ID}
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// TransitionStatus moves an order holding the shop's listings to the next
// state of the transition table.
func (s *service) TransitionStatus(ctx context.Context, shopUserID, orderID uuid.UUID, to enums.OrderStatus) (*TransitionResult, error) {
	if !to.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status").
			WithDetails(map[string]string{"status": "is not a known order status"})
	}

	var result *TransitionResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		shop, err := findShop(ctx, tx, shopUserID)
		if err != nil {
			return err
		}
		repo := NewRepository(tx)
		order, err := repo.LockShopOrder(ctx, shop.ID, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}

		from := order.Status
		if to == enums.OrderStatusBasket || !from.CanTransition(to) {
			s.metrics.IncRejected(string(from), string(to))
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move order from %s to %s", from, to)).
				WithDetails(map[string]any{
					"from":    from,
					"to":      to,
					"allowed": from.AllowedTransitions(),
				})
		}

		changedAt := s.now()
		updated, err := repo.UpdateStatus(ctx, order.ID, from, to, changedAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}
		if updated == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "order status changed concurrently; retry")
		}

		orderID := order.ID
		note := &models.Notification{
			UserID:  order.UserID,
			Type:    enums.NotificationTypeOrderStatusChanged,
			Title:   "Order status changed",
			Message: fmt.Sprintf("Order %s is now %s.", shortID(orderID), to),
			OrderID: &orderID,
		}
		if err := notifications.NewRepository(tx).Create(ctx, note); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create status notification")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: shopUserID, Type: string(enums.UserTypeShop)},
			OccurredAt:    changedAt,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:   order.ID,
				BuyerID:   order.UserID,
				ShopID:    shop.ID,
				From:      from,
				To:        to,
				ChangedAt: changedAt,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order status changed")
		}
		result = &TransitionResult{OrderID: order.ID, From: from, To: to}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(result.From), string(result.To))
	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{"from": result.From, "to": result.To})
	s.logg.Info(logCtx, "order status changed")
	return result, nil
}

func findShop(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) (*models.Shop, error) {
	shop, err := catalog.NewRepository(tx).FindShopByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found; import a price list first")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shop")
	}
	return shop, nil
}

func parseCursor(raw string) (*pagination.Cursor, error) {
	cursor, err := pagination.ParseCursor(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor").
			WithDetails(map[string]string{"cursor": "is invalid"})
	}
	return cursor, nil
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

package controllers

import (
	"net/http"

	"github.com/angelmondragon/marketplace-backend/api/middleware"
	"github.com/angelmondragon/marketplace-backend/api/validators"
	"github.com/angelmondragon/marketplace-backend/internal/catalog"
	"github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/internal/partner"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/google/uuid"
)

// PartnerImport replaces the caller's catalog with the price list at the given URL.
func PartnerImport(svc partner.Service, logg *logger.Logger) http.HandlerFunc {
	return callerEndpoint(logg, "partner", svc != nil, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		body, err := decode[partner.ImportRequest](r)
		if err != nil {
			return err
		}
		userType := enums.UserType(middleware.UserTypeFromContext(r.Context()))
		result, err := svc.Import(r.Context(), userID, userType, body)
		if err != nil {
			return err
		}
		return ok(w, result)
	})
}

func PartnerState(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return callerEndpoint(logg, catalogService, svc != nil, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		shop, err := svc.GetShopState(r.Context(), userID)
		if err != nil {
			return err
		}
		return ok(w, shop)
	})
}

// PartnerSetState opens or closes the caller's shop for new orders.
func PartnerSetState(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return callerEndpoint(logg, catalogService, svc != nil, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		body, err := decode[catalog.ShopStateRequest](r)
		if err != nil {
			return err
		}
		shop, err := svc.SetShopState(r.Context(), userID, *body.State)
		if err != nil {
			return err
		}
		return ok(w, shop)
	})
}

// PartnerOrders lists placed orders containing the caller's listings, with
// only the caller's lines shown.
func PartnerOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return callerEndpoint(logg, ordersService, svc != nil, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		limit, cursor, err := pageParams(r)
		if err != nil {
			return err
		}
		page, err := svc.ListShopOrders(r.Context(), userID, orders.ListParams{Limit: limit, Cursor: cursor})
		if err != nil {
			return err
		}
		return ok(w, page)
	})
}

// PartnerOrderStatus moves an order along the status machine.
func PartnerOrderStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return callerEndpoint(logg, ordersService, svc != nil, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			return err
		}
		body, err := decode[orders.StatusRequest](r)
		if err != nil {
			return err
		}
		result, err := svc.TransitionStatus(r.Context(), userID, orderID, enums.OrderStatus(body.Status))
		if err != nil {
			return err
		}
		return ok(w, result)
	})
}

package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/marketplace-backend/api/validators"
	"github.com/angelmondragon/marketplace-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/google/uuid"
)

const ordersService = "orders"

// ListOrders returns the caller's placed orders, newest first.
func ListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return callerEndpoint(logg, ordersService, svc != nil, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		limit, cursor, err := pageParams(r)
		if err != nil {
			return err
		}
		page, err := svc.ListBuyerOrders(r.Context(), userID, orders.ListParams{Limit: limit, Cursor: cursor})
		if err != nil {
			return err
		}
		return ok(w, page)
	})
}

// PlaceOrder checks out the caller's basket to the given contact.
func PlaceOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return callerEndpoint(logg, ordersService, svc != nil, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		body, err := decode[orders.PlaceOrderRequest](r)
		if err != nil {
			return err
		}
		// an unparsable id cannot name one of the caller's contacts
		contactID, err := uuid.Parse(strings.TrimSpace(body.Contact))
		if err != nil {
			return pkgerrors.New(pkgerrors.CodeContactNotFound, "contact not found").
				WithDetails(map[string]string{"contact": "does not exist"})
		}

		order, err := svc.PlaceOrder(r.Context(), userID, contactID)
		if err != nil {
			return err
		}
		return created(w, order)
	})
}

func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return callerEndpoint(logg, ordersService, svc != nil, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			return err
		}
		order, err := svc.GetBuyerOrder(r.Context(), userID, orderID)
		if err != nil {
			return err
		}
		return ok(w, order)
	})
}

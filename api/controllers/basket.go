package controllers

import (
	"net/http"

	"github.com/angelmondragon/marketplace-backend/api/validators"
	"github.com/angelmondragon/marketplace-backend/internal/basket"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/google/uuid"
)

const basketService = "basket"

func GetBasket(svc basket.Service, logg *logger.Logger) http.HandlerFunc {
	return callerEndpoint(logg, basketService, svc != nil, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		view, err := svc.Get(r.Context(), userID)
		if err != nil {
			return err
		}
		return ok(w, view)
	})
}

// AddBasketItems applies the whole batch or nothing.
func AddBasketItems(svc basket.Service, logg *logger.Logger) http.HandlerFunc {
	return callerEndpoint(logg, basketService, svc != nil, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		body, err := decode[basket.AddItemsRequest](r)
		if err != nil {
			return err
		}
		view, err := svc.AddItems(r.Context(), userID, body)
		if err != nil {
			return err
		}
		return ok(w, view)
	})
}

func UpdateBasketItems(svc basket.Service, logg *logger.Logger) http.HandlerFunc {
	return callerEndpoint(logg, basketService, svc != nil, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		body, err := decode[basket.UpdateItemsRequest](r)
		if err != nil {
			return err
		}
		view, err := svc.UpdateItems(r.Context(), userID, body)
		if err != nil {
			return err
		}
		return ok(w, view)
	})
}

// RemoveBasketItems drops the listed lines; ids outside the caller's basket
// are ignored.
func RemoveBasketItems(svc basket.Service, logg *logger.Logger) http.HandlerFunc {
	return callerEndpoint(logg, basketService, svc != nil, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		body, err := decode[basket.RemoveItemsRequest](r)
		if err != nil {
			return err
		}
		ids, err := validators.ParseIDList(body.Items, "items")
		if err != nil {
			return err
		}
		view, err := svc.RemoveItems(r.Context(), userID, ids)
		if err != nil {
			return err
		}
		return ok(w, view)
	})
}

package controllers

import (
	"net/http"

	"github.com/angelmondragon/marketplace-backend/api/validators"
	"github.com/angelmondragon/marketplace-backend/internal/catalog"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

const catalogService = "catalog"

func ListCategories(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint(logg, catalogService, svc != nil, func(w http.ResponseWriter, r *http.Request) error {
		items, err := svc.ListCategories(r.Context())
		if err != nil {
			return err
		}
		return ok(w, items)
	})
}

// ListShops returns the shops currently accepting orders.
func ListShops(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint(logg, catalogService, svc != nil, func(w http.ResponseWriter, r *http.Request) error {
		items, err := svc.ListShops(r.Context())
		if err != nil {
			return err
		}
		return ok(w, items)
	})
}

// ListProducts returns listings of open shops, optionally narrowed by
// shop_id, category_id and a q name search.
func ListProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint(logg, catalogService, svc != nil, func(w http.ResponseWriter, r *http.Request) error {
		var (
			filter catalog.ProductFilter
			err    error
		)
		if filter.ShopID, err = validators.ParseQueryUUID(r, "shop_id"); err != nil {
			return err
		}
		if filter.CategoryID, err = validators.ParseQueryUUID(r, "category_id"); err != nil {
			return err
		}
		filter.Search = validators.SanitizeString(r.URL.Query().Get("q"), 100)
		items, err := svc.ListProducts(r.Context(), filter)
		if err != nil {
			return err
		}
		return ok(w, items)
	})
}

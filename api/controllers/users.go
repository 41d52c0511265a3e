package controllers

import (
	"net/http"

	"github.com/angelmondragon/marketplace-backend/internal/users"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/google/uuid"
)

func UserDetails(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return callerEndpoint(logg, "users", svc != nil, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		user, err := svc.Get(r.Context(), userID)
		if err != nil {
			return err
		}
		return ok(w, user)
	})
}

// UserUpdateDetails applies a partial profile update; a password change is rehashed.
func UserUpdateDetails(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return callerEndpoint(logg, "users", svc != nil, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		body, err := decode[users.UpdateDetailsRequest](r)
		if err != nil {
			return err
		}
		user, err := svc.UpdateDetails(r.Context(), userID, body)
		if err != nil {
			return err
		}
		return ok(w, user)
	})
}

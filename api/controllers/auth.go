package controllers

import (
	"net/http"

	"github.com/angelmondragon/marketplace-backend/api/middleware"
	"github.com/angelmondragon/marketplace-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// AuthRegister opens an inactive account and mails the confirmation token.
func AuthRegister(svc auth.RegisterService, logg *logger.Logger) http.HandlerFunc {
	return endpoint(logg, "register", svc != nil, func(w http.ResponseWriter, r *http.Request) error {
		body, err := decode[auth.RegisterRequest](r)
		if err != nil {
			return err
		}
		result, err := svc.Register(r.Context(), body)
		if err != nil {
			return err
		}
		return created(w, result)
	})
}

// AuthConfirm activates an account with its emailed token.
func AuthConfirm(svc auth.RegisterService, logg *logger.Logger) http.HandlerFunc {
	return endpoint(logg, "register", svc != nil, func(w http.ResponseWriter, r *http.Request) error {
		body, err := decode[auth.ConfirmRequest](r)
		if err != nil {
			return err
		}
		if err := svc.Confirm(r.Context(), body); err != nil {
			return err
		}
		return ok(w, nil)
	})
}

// AuthLogin issues an access token. The token is echoed in X-Market-Token
// for clients that do not parse the body.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint(logg, "auth", svc != nil, func(w http.ResponseWriter, r *http.Request) error {
		body, err := decode[auth.LoginRequest](r)
		if err != nil {
			return err
		}
		result, err := svc.Login(r.Context(), body)
		if err != nil {
			return err
		}
		w.Header().Set("X-Market-Token", result.AccessToken)
		return ok(w, result)
	})
}

func AuthLogout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint(logg, "auth", svc != nil, func(w http.ResponseWriter, r *http.Request) error {
		accessID := middleware.AccessIDFromContext(r.Context())
		if accessID == "" {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication credentials were not provided")
		}
		if err := svc.Logout(r.Context(), accessID); err != nil {
			return err
		}
		return ok(w, nil)
	})
}

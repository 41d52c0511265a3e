package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/marketplace-backend/api/middleware"
	"github.com/angelmondragon/marketplace-backend/api/responses"
	"github.com/angelmondragon/marketplace-backend/api/validators"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
	"github.com/google/uuid"
)

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

type callerFunc func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error

// endpoint turns fn into an http.HandlerFunc whose returned error is
// rendered through the response envelope. wired is false when the backing
// service was never constructed.
func endpoint(logg *logger.Logger, service string, wired bool, fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !wired {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, service+" service unavailable"))
			return
		}
		if err := fn(w, r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
		}
	}
}

// callerEndpoint is endpoint for handlers acting on behalf of the
// authenticated user.
func callerEndpoint(logg *logger.Logger, service string, wired bool, fn callerFunc) http.HandlerFunc {
	return endpoint(logg, service, wired, func(w http.ResponseWriter, r *http.Request) error {
		userID, err := callerID(r)
		if err != nil {
			return err
		}
		return fn(w, r, userID)
	})
}

func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication credentials were not provided")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

func decode[T any](r *http.Request) (T, error) {
	var body T
	err := validators.DecodeJSONBody(r, &body)
	return body, err
}

func ok(w http.ResponseWriter, data any) error {
	responses.WriteSuccess(w, data)
	return nil
}

func created(w http.ResponseWriter, data any) error {
	responses.WriteSuccessStatus(w, http.StatusCreated, data)
	return nil
}

// pageParams reads limit and cursor. The cursor stays opaque here; services
// decode it.
func pageParams(r *http.Request) (int, string, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return 0, "", err
	}
	return limit, strings.TrimSpace(r.URL.Query().Get("cursor")), nil
}

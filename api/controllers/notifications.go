package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/angelmondragon/marketplace-backend/api/validators"
	"github.com/angelmondragon/marketplace-backend/internal/notifications"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/google/uuid"
)

const notificationsService = "notifications"

// ListNotifications pages through the caller's notifications; unreadOnly=true
// hides the ones already read.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return callerEndpoint(logg, notificationsService, svc != nil, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		limit, cursor, err := pageParams(r)
		if err != nil {
			return err
		}
		params := notifications.ListParams{UserID: userID, Limit: limit, Cursor: cursor}
		if raw := strings.TrimSpace(r.URL.Query().Get("unreadOnly")); raw != "" {
			if params.UnreadOnly, err = strconv.ParseBool(raw); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unreadOnly value")
			}
		}

		page, err := svc.List(r.Context(), params)
		if err != nil {
			return err
		}
		return ok(w, page)
	})
}

func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return callerEndpoint(logg, notificationsService, svc != nil, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		id, err := validators.ParseUUIDParam(r, "notificationId")
		if err != nil {
			return err
		}
		if err := svc.MarkRead(r.Context(), userID, id); err != nil {
			return err
		}
		return ok(w, nil)
	})
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return callerEndpoint(logg, notificationsService, svc != nil, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		n, err := svc.MarkAllRead(r.Context(), userID)
		if err != nil {
			return err
		}
		return ok(w, map[string]int64{"updated": n})
	})
}

// UnreadNotificationCount backs the badge counter in the account menu.
func UnreadNotificationCount(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return callerEndpoint(logg, notificationsService, svc != nil, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		n, err := svc.UnreadCount(r.Context(), userID)
		if err != nil {
			return err
		}
		return ok(w, map[string]int64{"unread": n})
	})
}

package controllers

import (
	"net/http"

	"github.com/angelmondragon/marketplace-backend/api/validators"
	"github.com/angelmondragon/marketplace-backend/internal/contacts"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/google/uuid"
)

const contactsService = "contacts"

func ListContacts(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return callerEndpoint(logg, contactsService, svc != nil, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		items, err := svc.List(r.Context(), userID)
		if err != nil {
			return err
		}
		return ok(w, items)
	})
}

func CreateContact(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return callerEndpoint(logg, contactsService, svc != nil, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		body, err := decode[contacts.CreateContactRequest](r)
		if err != nil {
			return err
		}
		contact, err := svc.Create(r.Context(), userID, body)
		if err != nil {
			return err
		}
		return created(w, contact)
	})
}

// UpdateContact patches one of the caller's contacts; a foreign id is not found.
func UpdateContact(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return callerEndpoint(logg, contactsService, svc != nil, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		body, err := decode[contacts.UpdateContactRequest](r)
		if err != nil {
			return err
		}
		contact, err := svc.Update(r.Context(), userID, body)
		if err != nil {
			return err
		}
		return ok(w, contact)
	})
}

// DeleteContacts removes the listed contacts that belong to the caller and
// ignores the rest.
func DeleteContacts(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return callerEndpoint(logg, contactsService, svc != nil, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
		body, err := decode[contacts.DeleteContactsRequest](r)
		if err != nil {
			return err
		}
		ids, err := validators.ParseIDList(body.Items, "items")
		if err != nil {
			return err
		}
		result, err := svc.Delete(r.Context(), userID, ids)
		if err != nil {
			return err
		}
		return ok(w, result)
	})
}

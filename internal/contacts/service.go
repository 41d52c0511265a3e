package contacts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service manages the caller's delivery contacts.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]ContactDTO, error)
	Create(ctx context.Context, userID uuid.UUID, req CreateContactRequest) (*ContactDTO, error)
	Update(ctx context.Context, userID uuid.UUID, req UpdateContactRequest) (*ContactDTO, error)
	Delete(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (*DeleteResult, error)
}

type repository interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Contact, error)
	Create(ctx context.Context, contact *models.Contact) error
	FindOwned(ctx context.Context, userID, contactID uuid.UUID) (*models.Contact, error)
	Update(ctx context.Context, userID, contactID uuid.UUID, fields map[string]any) (int64, error)
	Delete(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error)
}

type service struct {
	repo repository
}

func NewService(repo repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("contacts repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]ContactDTO, error) {
	rows, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list contacts")
	}
	out := make([]ContactDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, req CreateContactRequest) (*ContactDTO, error) {
	contact := req.toModel(userID)
	trimContact(contact)
	if contact.City == "" || contact.Street == "" || contact.Phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(missingFields(contact))
	}
	if err := s.repo.Create(ctx, contact); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create contact")
	}
	dto := FromModel(*contact)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, userID uuid.UUID, req UpdateContactRequest) (*ContactDTO, error) {
	contactID, err := uuid.Parse(strings.TrimSpace(req.ID))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid contact id").
			WithDetails(map[string]string{"id": "must be a valid UUID"})
	}

	fields := req.fields()
	for column, value := range fields {
		trimmed := strings.TrimSpace(value.(string))
		if trimmed == "" && requiredColumns[column] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]string{column: "is required"})
		}
		fields[column] = trimmed
	}

	if _, err := s.repo.Update(ctx, userID, contactID, fields); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update contact")
	}
	contact, err := s.repo.FindOwned(ctx, userID, contactID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contact not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load contact")
	}
	dto := FromModel(*contact)
	return &dto, nil
}

// Delete removes the caller's contacts among the listed ids. Ids owned by
// other users, or unknown, are skipped silently.
func (s *service) Delete(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (*DeleteResult, error) {
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no valid ids supplied").
			WithDetails(map[string]string{"items": "must list at least one id"})
	}
	deleted, err := s.repo.Delete(ctx, userID, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete contacts")
	}
	return &DeleteResult{Deleted: deleted}, nil
}

var requiredColumns = map[string]bool{"city": true, "street": true, "phone": true}

func trimContact(c *models.Contact) {
	c.City = strings.TrimSpace(c.City)
	c.Street = strings.TrimSpace(c.Street)
	c.House = strings.TrimSpace(c.House)
	c.Structure = strings.TrimSpace(c.Structure)
	c.Building = strings.TrimSpace(c.Building)
	c.Apartment = strings.TrimSpace(c.Apartment)
	c.Phone = strings.TrimSpace(c.Phone)
}

func missingFields(c *models.Contact) map[string]string {
	details := map[string]string{}
	if c.City == "" {
		details["city"] = "is required"
	}
	if c.Street == "" {
		details["street"] = "is required"
	}
	if c.Phone == "" {
		details["phone"] = "is required"
	}
	return details
}

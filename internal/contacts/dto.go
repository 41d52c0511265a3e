package contacts

import (
	"time"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/google/uuid"
)

// ContactDTO is the API shape of a delivery contact.
type ContactDTO struct {
	ID        uuid.UUID `json:"id"`
	City      string    `json:"city"`
	Street    string    `json:"street"`
	House     string    `json:"house"`
	Structure string    `json:"structure"`
	Building  string    `json:"building"`
	Apartment string    `json:"apartment"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateContactRequest is the body of POST /user/contact.
type CreateContactRequest struct {
	City      string `json:"city" validate:"required,max=50"`
	Street    string `json:"street" validate:"required,max=100"`
	House     string `json:"house" validate:"max=15"`
	Structure string `json:"structure" validate:"max=15"`
	Building  string `json:"building" validate:"max=15"`
	Apartment string `json:"apartment" validate:"max=15"`
	Phone     string `json:"phone" validate:"required,max=20"`
}

// UpdateContactRequest is the body of PUT /user/contact. Omitted fields keep
// their stored value.
type UpdateContactRequest struct {
	ID        string  `json:"id" validate:"required"`
	City      *string `json:"city,omitempty" validate:"omitempty,min=1,max=50"`
	Street    *string `json:"street,omitempty" validate:"omitempty,min=1,max=100"`
	House     *string `json:"house,omitempty" validate:"omitempty,max=15"`
	Structure *string `json:"structure,omitempty" validate:"omitempty,max=15"`
	Building  *string `json:"building,omitempty" validate:"omitempty,max=15"`
	Apartment *string `json:"apartment,omitempty" validate:"omitempty,max=15"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,min=1,max=20"`
}

// DeleteContactsRequest carries a comma separated id list.
type DeleteContactsRequest struct {
	Items string `json:"items" validate:"required"`
}

// DeleteResult reports how many rows the caller actually owned and removed.
type DeleteResult struct {
	Deleted int64 `json:"deleted"`
}

func FromModel(c models.Contact) ContactDTO {
	return ContactDTO{
		ID:        c.ID,
		City:      c.City,
		Street:    c.Street,
		House:     c.House,
		Structure: c.Structure,
		Building:  c.Building,
		Apartment: c.Apartment,
		Phone:     c.Phone,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func (r CreateContactRequest) toModel(userID uuid.UUID) *models.Contact {
	return &models.Contact{
		UserID:    userID,
		City:      r.City,
		Street:    r.Street,
		House:     r.House,
		Structure: r.Structure,
		Building:  r.Building,
		Apartment: r.Apartment,
		Phone:     r.Phone,
	}
}

func (r UpdateContactRequest) fields() map[string]any {
	fields := map[string]any{}
	set := func(column string, value *string) {
		if value != nil {
			fields[column] = *value
		}
	}
	set("city", r.City)
	set("street", r.Street)
	set("house", r.House)
	set("structure", r.Structure)
	set("building", r.Building)
	set("apartment", r.Apartment)
	set("phone", r.Phone)
	return fields
}

// Package models maps the marketplace tables onto gorm structs.
package models

import "github.com/google/uuid"

// assignID fills a missing primary key before insert. Postgres would default
// it, but ids are needed in Go before the row is written (outbox payloads,
// notification links) and sqlite has no uuid default.
func assignID(id *uuid.UUID) error {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	return nil
}

package domain

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// ID identifies every stored record. Identifiers are parsed once, at the HTTP or storage
// boundary, so the rest of the code never looks at their textual shape.
type ID uuid.UUID

var NilID ID

func NewID() (ID, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return NilID, fmt.Errorf("generate id: %w", err)
	}
	return ID(u), nil
}

func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilID, fmt.Errorf("parse id %q: %w", s, err)
	}
	return ID(u), nil
}

func (id ID) String() string { return uuid.UUID(id).String() }

func (id ID) IsZero() bool { return id == NilID }

func (id ID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *ID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id *ID) Scan(src any) error { return (*uuid.UUID)(id).Scan(src) }

func (id ID) Value() (driver.Value, error) { return uuid.UUID(id).Value() }

// IDStrings is used to pass ID sets to SQL as uuid[] parameters.
func IDStrings(ids []ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

package domain

import (
	"github.com/google/uuid"
)

// NewID generates a UUIDv7 string. IDs sort by creation time.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ValidID reports whether s parses as a UUID.
func ValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

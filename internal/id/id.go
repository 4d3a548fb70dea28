package id

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// UUID generates a random UUID v4.
func UUID() string {
	return uuid.New().String()
}

// Sortable generates a UUID v7. IDs from one process sort by creation time,
// which keeps request IDs in log order. Falls back to v4 if the clock
// source fails.
func Sortable() string {
	u, err := uuid.NewV7()
	if err != nil {
		return UUID()
	}
	return u.String()
}

// SortableTime returns the creation time encoded in a v7 ID.
func SortableTime(s string) (time.Time, bool) {
	u, err := uuid.Parse(s)
	if err != nil || u.Version() != 7 {
		return time.Time{}, false
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec), true
}

// Short generates a 16 character random hex ID.
func Short() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// IsValid reports whether s parses as a UUID.
func IsValid(s string) bool {
	return uuid.Validate(s) == nil
}

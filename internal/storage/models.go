package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested slot or job does not exist.
var ErrNotFound = errors.New("not found")

// Slot is one persisted key-value entry. Value holds the serialized collection.
type Slot struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

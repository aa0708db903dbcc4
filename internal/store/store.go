package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrIgnoreExists is returned when adding a mask that is already listed.
	ErrIgnoreExists = errors.New("ignore mask already exists")
	// ErrIgnoreNotFound is returned when removing a mask that is not listed.
	ErrIgnoreNotFound = errors.New("ignore mask not found")
)

// Ignore is a persisted nick!user@host mask whose messages the bot skips.
type Ignore struct {
	ID        int64
	Mask      string
	AddedBy   string // identity of the admin who added it
	CreatedAt time.Time
}

// IgnoreStore defines persistence for the ignore list.
type IgnoreStore interface {
	// AddIgnore stores mask. Returns ErrIgnoreExists if already present.
	AddIgnore(ctx context.Context, mask, addedBy string) (*Ignore, error)
	// RemoveIgnore deletes mask. Returns ErrIgnoreNotFound if absent.
	RemoveIgnore(ctx context.Context, mask string) error
	// ListIgnores returns all masks ordered by mask.
	ListIgnores(ctx context.Context) ([]Ignore, error)
	// IsIgnored reports whether identity matches any stored mask.
	IsIgnored(ctx context.Context, identity string) (bool, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	IgnoreStore
	Close() error
}

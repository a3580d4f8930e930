// Package adjust persists per-line subtitle timing overrides so they survive
// a restart.
package adjust

import (
	"context"
	"time"
)

// Adjustment is the effective interval of one edited line.
type Adjustment struct {
	Key          string
	SubtitlePath string
	SubtitleHash string
	Start        float64
	End          float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository stores adjustments keyed by line key.
type Repository interface {
	// Upsert inserts a, or replaces path and timing of the existing row.
	Upsert(ctx context.Context, a Adjustment) error
	DeleteByKey(ctx context.Context, key string) error
	DeleteByFileHash(ctx context.Context, hash string) error
	// FindByKey returns nil without error when the key is unknown.
	FindByKey(ctx context.Context, key string) (*Adjustment, error)
	FindByPath(ctx context.Context, path string) ([]Adjustment, error)
	FindByHash(ctx context.Context, hash string) ([]Adjustment, error)
}

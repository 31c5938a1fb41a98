// Package directory looks up user contact data owned by the account service.
package directory

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

type userRecord struct {
	ID    int64   `gorm:"primaryKey"`
	Phone *string `gorm:"size:32"`
}

func (userRecord) TableName() string { return "users" }

// Gorm reads phone numbers from the shared users table.
type Gorm struct {
	db *gorm.DB
}

// NewGorm wraps db. When migrate is set the users table is created if
// missing, which is only useful for standalone deployments and tests.
func NewGorm(ctx context.Context, db *gorm.DB, migrate bool) (*Gorm, error) {
	if migrate {
		if err := db.WithContext(ctx).AutoMigrate(&userRecord{}); err != nil {
			return nil, fmt.Errorf("migrate users: %w", err)
		}
	}
	return &Gorm{db: db}, nil
}

// Phones returns the phone of each id that has one, in a single query.
func (g *Gorm) Phones(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var recs []userRecord
	if err := g.db.WithContext(ctx).
		Where("id IN ?", ids).
		Where("phone IS NOT NULL").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("lookup phones: %w", err)
	}
	for _, r := range recs {
		if r.Phone != nil && *r.Phone != "" {
			out[r.ID] = *r.Phone
		}
	}
	return out, nil
}

// SetPhone upserts a user's phone number.
func (g *Gorm) SetPhone(ctx context.Context, userID int64, phone string) error {
	rec := userRecord{ID: userID, Phone: &phone}
	if err := g.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("set phone of user %d: %w", userID, err)
	}
	return nil
}

// Static is an in-memory directory.
type Static struct {
	mu     sync.RWMutex
	phones map[int64]string
}

// NewStatic constructs a Static seeded with phones.
func NewStatic(phones map[int64]string) *Static {
	s := &Static{phones: make(map[int64]string, len(phones))}
	for id, p := range phones {
		s.phones[id] = p
	}
	return s
}

// Phones implements the leaderboard directory contract.
func (s *Static) Phones(_ context.Context, ids []int64) (map[int64]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		if p, ok := s.phones[id]; ok && p != "" {
			out[id] = p
		}
	}
	return out, nil
}

// SetPhone records a user's phone number.
func (s *Static) SetPhone(_ context.Context, userID int64, phone string) error {
	s.mu.Lock()
	s.phones[userID] = phone
	s.mu.Unlock()
	return nil
}

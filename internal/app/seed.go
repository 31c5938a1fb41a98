package service

import (
	"context"
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/liveboard/internal/adapters/repository"
	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/pkg/logger"
)

// Seed is the layout of a seed file. Events are authored outside the
// service; seeding loads them for local runs and load tests.
type Seed struct {
	Events        []SeedEvent `koanf:"events"`
	DefaultPrizes []SeedPrize `koanf:"default_prizes"`
	Users         []SeedUser  `koanf:"users"`
}

// SeedEvent is an event with its prize table.
type SeedEvent struct {
	ID          int64       `koanf:"id"`
	Name        string      `koanf:"name"`
	ScoringType string      `koanf:"event_type"`
	Logo        string      `koanf:"logo"`
	Description string      `koanf:"description"`
	StartDate   time.Time   `koanf:"start_date"`
	EndDate     time.Time   `koanf:"end_date"`
	Prizes      []SeedPrize `koanf:"prizes"`
}

// SeedPrize is one prize line.
type SeedPrize struct {
	Place   int            `koanf:"place"`
	Rewards map[string]any `koanf:"rewards"`
}

// SeedUser is a directory entry.
type SeedUser struct {
	ID    int64  `koanf:"id"`
	Phone string `koanf:"phone"`
}

// LoadSeed parses a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load seed %s: %w", path, err)
	}
	var out Seed
	if err := k.UnmarshalWithConf("", &out, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode seed %s: %w", path, err)
	}
	return &out, nil
}

type phoneSetter interface {
	SetPhone(ctx context.Context, userID int64, phone string) error
}

func (s *Service) seed(ctx context.Context, path string) error {
	data, err := LoadSeed(path)
	if err != nil {
		return err
	}
	return s.apply(ctx, data)
}

// apply saves events, then prize tables that are still empty, then phones.
// Re-applying the same seed is harmless.
func (s *Service) apply(ctx context.Context, data *Seed) error {
	seeder, ok := s.store.(repository.Seeder)
	if !ok {
		return fmt.Errorf("seed: store %T cannot be seeded", s.store)
	}

	for _, se := range data.Events {
		ev := model.Event{
			ID:          se.ID,
			Name:        se.Name,
			ScoringType: se.ScoringType,
			Logo:        se.Logo,
			Description: se.Description,
			StartDate:   se.StartDate.UTC(),
			EndDate:     se.EndDate.UTC(),
		}
		if err := seeder.SaveEvent(ctx, &ev); err != nil {
			return fmt.Errorf("seed event %q: %w", se.Name, err)
		}
		if err := s.seedPrizes(ctx, seeder, ev.ID, se.Prizes); err != nil {
			return err
		}
	}
	if err := s.seedPrizes(ctx, seeder, s.cfg.DefaultPrizeEventID, data.DefaultPrizes); err != nil {
		return err
	}

	if len(data.Users) > 0 {
		setter, ok := s.directory.(phoneSetter)
		if !ok {
			return fmt.Errorf("seed: directory %T cannot store phones", s.directory)
		}
		for _, u := range data.Users {
			if err := setter.SetPhone(ctx, u.ID, u.Phone); err != nil {
				return err
			}
		}
	}

	s.logger.Info(ctx, "seed applied",
		logger.Int("events", len(data.Events)),
		logger.Int("users", len(data.Users)),
	)
	return nil
}

func (s *Service) seedPrizes(ctx context.Context, seeder repository.Seeder, eventID int64, lines []SeedPrize) error {
	if len(lines) == 0 {
		return nil
	}
	existing, err := s.store.ListPrizes(ctx, eventID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	table := make([]model.Prize, len(lines))
	for i, p := range lines {
		table[i] = model.Prize{EventID: eventID, Place: p.Place, Rewards: model.Rewards(p.Rewards)}
	}
	if err := seeder.SavePrizes(ctx, table); err != nil {
		return fmt.Errorf("seed prizes of event %d: %w", eventID, err)
	}
	return nil
}

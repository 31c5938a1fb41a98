// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/liveboard/internal/adapters/cache"
	cronrunner "github.com/okian/liveboard/internal/adapters/cron"
	"github.com/okian/liveboard/internal/adapters/directory"
	"github.com/okian/liveboard/internal/adapters/export"
	"github.com/okian/liveboard/internal/adapters/identity"
	"github.com/okian/liveboard/internal/adapters/mq/queue"
	"github.com/okian/liveboard/internal/adapters/mq/worker"
	"github.com/okian/liveboard/internal/adapters/repository"
	"github.com/okian/liveboard/internal/config"
	"github.com/okian/liveboard/internal/domain/archive"
	"github.com/okian/liveboard/internal/domain/catalog"
	"github.com/okian/liveboard/internal/domain/dedupe"
	"github.com/okian/liveboard/internal/domain/leaderboard"
	"github.com/okian/liveboard/internal/domain/ledger"
	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/internal/domain/prizes"
	"github.com/okian/liveboard/internal/domain/types"
	"github.com/okian/liveboard/pkg/logger"
	"github.com/okian/liveboard/pkg/metrics"
)

// ErrNotStarted is returned by operations invoked before Start.
var ErrNotStarted = errors.New("service not started")

// Directory resolves user phone numbers.
type Directory = leaderboard.Directory

// Service implements the API dependencies for the leaderboard system.
type Service struct {
	mu sync.RWMutex

	cfg    *config.Config
	logger logger.Logger
	now    func() time.Time

	// Core components
	store     repository.Store
	directory Directory
	cache     cache.Store
	tokens    *identity.JWT
	catalog   *catalog.Catalog
	ledger    *ledger.Ledger
	board     *leaderboard.Query
	prizes    *prizes.Distributor
	archiver  *archive.Engine

	// Background work
	scheduler   *cronrunner.Runner
	exportQueue *queue.InMemoryQueue
	exportPool  *worker.Pool
	cancel      context.CancelFunc

	// Injected collaborators are not closed on Stop.
	ownStore bool
	ownCache bool

	started bool
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithStore uses store instead of the one selected by config.
func WithStore(store repository.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithDirectory uses d instead of the one selected by config.
func WithDirectory(d Directory) Option {
	return func(s *Service) { s.directory = d }
}

// WithCache uses c instead of the one selected by config.
func WithCache(c cache.Store) Option {
	return func(s *Service) { s.cache = c }
}

// New constructs a new Service. Components are built by Start.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the components and starts background work.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting leaderboard service...")

	if err := s.openStore(ctx); err != nil {
		return err
	}
	if err := s.openCache(ctx); err != nil {
		s.closeStore(ctx)
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.tokens = identity.NewJWT(s.cfg.JWTSecret, s.cfg.TokenTTL)

	catOpts := []catalog.Option{
		catalog.WithPadding(s.cfg.VisibilityPadding),
		catalog.WithDefaultPrizeEventID(s.cfg.DefaultPrizeEventID),
		catalog.WithLogger(s.logger.Named("catalog")),
		catalog.WithClock(s.now),
	}
	if s.cache != nil {
		catOpts = append(catOpts, catalog.WithCache(s.cache))
	}
	s.catalog = catalog.New(s.store, catOpts...)
	s.ledger = ledger.New(s.store, s.catalog, ledger.WithLogger(s.logger.Named("ledger")))
	s.board = leaderboard.New(s.catalog, s.ledger, s.directory,
		leaderboard.WithLimits(s.cfg.DefaultLeaderboardLimit, s.cfg.MaxLeaderboardLimit),
		leaderboard.WithLogger(s.logger.Named("leaderboard")),
	)
	s.prizes = prizes.NewDistributor(s.store, prizes.WithLogger(s.logger.Named("prizes")))

	archOpts := []archive.Option{archive.WithLogger(s.logger.Named("archive"))}
	if s.cfg.ExportDir != "" {
		exporter, err := s.startExport(runCtx)
		if err != nil {
			s.shutdown(ctx)
			return err
		}
		archOpts = append(archOpts, archive.WithExporter(exporter))
	}
	s.archiver = archive.NewEngine(s.store, s.catalog, archOpts...)

	if s.cfg.SeedFile != "" {
		if err := s.seed(ctx, s.cfg.SeedFile); err != nil {
			s.shutdown(ctx)
			return err
		}
	}

	if s.cfg.SweepSchedule != "" {
		s.scheduler = cronrunner.New(runCtx, s.logger.Named("cron"))
		if _, err := s.scheduler.Add("archive_sweep", s.cfg.SweepSchedule, func(ctx context.Context) {
			s.sweep(ctx, s.now())
		}); err != nil {
			s.shutdown(ctx)
			return fmt.Errorf("schedule sweep: %w", err)
		}
		s.scheduler.Start()
	}

	s.started = true
	s.logger.Info(ctx, "leaderboard service started",
		logger.String("store", s.cfg.StoreDriver),
		logger.String("cache", s.cfg.CacheBackend),
		logger.String("sweep", s.cfg.SweepSchedule),
		logger.String("exportDir", s.cfg.ExportDir),
	)
	return nil
}

func (s *Service) openStore(ctx context.Context) error {
	if s.store != nil {
		if s.directory == nil {
			s.directory = directory.NewStatic(nil)
		}
		return nil
	}
	s.ownStore = true

	switch s.cfg.StoreDriver {
	case config.StorePostgres:
		db, err := repository.OpenPostgres(repository.DBConfig{
			DSN:             s.cfg.DBDSN,
			MaxOpenConns:    s.cfg.DBMaxOpenConns,
			MaxIdleConns:    s.cfg.DBMaxIdleConns,
			ConnMaxLifetime: s.cfg.DBConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		store, err := repository.NewGormStore(ctx, db,
			repository.WithAutoMigrate(s.cfg.DBAutoMigrate),
			repository.WithLogger(s.logger.Named("store")),
		)
		if err != nil {
			return err
		}
		s.store = store
		if s.directory == nil {
			dir, err := directory.NewGorm(ctx, db, s.cfg.DBAutoMigrate)
			if err != nil {
				_ = store.Close()
				return err
			}
			s.directory = dir
		}
		s.logger.Info(ctx, "using postgres store")
	default:
		s.store = repository.NewMemoryStore()
		if s.directory == nil {
			s.directory = directory.NewStatic(nil)
		}
		s.logger.Info(ctx, "using in-memory store")
	}
	return nil
}

func (s *Service) openCache(ctx context.Context) error {
	if s.cache != nil {
		return nil
	}
	switch s.cfg.CacheBackend {
	case config.CacheRedis:
		rs, err := cache.NewRedisStore(ctx, &redis.Options{
			Addr:     s.cfg.RedisAddr,
			Password: s.cfg.RedisPassword,
			DB:       s.cfg.RedisDB,
		})
		if err != nil {
			return err
		}
		s.cache = rs
		s.ownCache = true
	case config.CacheMemory:
		s.cache = cache.NewMemoryStore()
		s.ownCache = true
	}
	return nil
}

func (s *Service) startExport(ctx context.Context) (*export.Exporter, error) {
	l := s.logger.Named("export")
	zw, err := export.NewZipWriter(s.cfg.ExportDir, l)
	if err != nil {
		return nil, err
	}
	s.exportQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.ExportQueueSize))
	seen := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize))
	exporter := export.NewExporter(s.exportQueue, seen, l)

	s.exportPool = worker.NewPool(s.cfg.ExportWorkerCount, s.exportQueue, exporter.Handler(zw), l)
	s.exportPool.Start(ctx)
	return exporter, nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping leaderboard service...")
	s.shutdown(ctx)
	s.started = false
	s.logger.Info(ctx, "leaderboard service stopped")
}

// shutdown releases whatever Start managed to build.
func (s *Service) shutdown(ctx context.Context) {
	if s.scheduler != nil {
		s.scheduler.Stop()
		s.scheduler = nil
	}
	if s.exportPool != nil {
		if err := s.exportPool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "export pool shutdown", logger.Error(err))
		}
		s.exportPool = nil
		s.exportQueue = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.ownCache {
		if closer, ok := s.cache.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
		s.cache = nil
		s.ownCache = false
	}
	s.closeStore(ctx)
}

func (s *Service) closeStore(ctx context.Context) {
	if !s.ownStore || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "close store", logger.Error(err))
	}
	s.store = nil
	s.ownStore = false
}

func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Resolve maps an access token to a user id.
func (s *Service) Resolve(ctx context.Context, token string) (int64, error) {
	if err := s.running(); err != nil {
		return 0, err
	}
	return s.tokens.Resolve(ctx, token)
}

// sweep archives expired events. Failures are logged; the next sweep retries.
func (s *Service) sweep(ctx context.Context, now time.Time) {
	n, err := s.archiver.Sweep(ctx, now)
	if err != nil {
		s.logger.Warn(ctx, "archive sweep incomplete", logger.Int("archived", n), logger.Error(err))
	}
}

// ListVisibleEvents sweeps expired events, then lists the events visible now
// with their prize tables. Prize lines of closed events carry the masked
// phone of the winner of that place.
func (s *Service) ListVisibleEvents(ctx context.Context) ([]types.EventView, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	now := s.now()
	s.sweep(ctx, now)

	events, err := s.catalog.ListVisible(ctx, now)
	if err != nil {
		return nil, err
	}

	views := make([]types.EventView, 0, len(events))
	for _, ev := range events {
		view, err := s.eventView(ctx, ev, now)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Service) eventView(ctx context.Context, ev model.Event, now time.Time) (types.EventView, error) {
	table, err := s.catalog.PrizeTable(ctx, ev.ID)
	if err != nil {
		return types.EventView{}, err
	}
	view := types.EventView{Event: ev, Prizes: make([]types.PrizeView, len(table))}
	for i, p := range table {
		view.Prizes[i] = types.PrizeView{Place: p.Place, Rewards: p.Rewards.Clone()}
	}
	if !ev.Closed(now) || len(table) == 0 {
		return view, nil
	}

	winners, err := s.archiver.WinnerIDs(ctx, ev.ID)
	if err != nil {
		return types.EventView{}, err
	}
	if len(winners) == 0 {
		return view, nil
	}
	ids := make([]int64, 0, len(winners))
	for _, uid := range winners {
		ids = append(ids, uid)
	}
	phones := s.board.MaskedPhones(ctx, ids)
	for i := range view.Prizes {
		uid, ok := winners[view.Prizes[i].Place]
		if !ok {
			continue
		}
		if phone, ok := phones[uid]; ok {
			view.Prizes[i].Phone = &phone
		}
	}
	return view, nil
}

// GetLeaderboard returns the top of an event's live table and the caller's row.
func (s *Service) GetLeaderboard(ctx context.Context, eventID, userID int64, limit int) (types.Board, error) {
	if err := s.running(); err != nil {
		return types.Board{}, err
	}
	return s.board.Leaderboard(ctx, eventID, userID, limit)
}

// SubmitResult adds delta to the caller's running total in an event.
func (s *Service) SubmitResult(ctx context.Context, eventID, userID int64, delta float64) (types.Submission, error) {
	if err := s.running(); err != nil {
		return types.Submission{}, err
	}
	return s.ledger.Submit(ctx, eventID, userID, delta, s.now())
}

// ListUnclaimed returns the caller's granted rewards.
func (s *Service) ListUnclaimed(ctx context.Context, userID int64) ([]model.UnclaimedReward, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	return s.prizes.ListUnclaimed(ctx, userID)
}

// Claim collects a reward exactly once.
func (s *Service) Claim(ctx context.Context, userID, rewardID int64) (model.UnclaimedReward, error) {
	if err := s.running(); err != nil {
		return model.UnclaimedReward{}, err
	}
	return s.prizes.Claim(ctx, userID, rewardID)
}

// Sweep archives every expired event now.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	if err := s.running(); err != nil {
		return 0, err
	}
	return s.archiver.Sweep(ctx, s.now())
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":      s.started,
		"storeDriver":  s.cfg.StoreDriver,
		"cacheBackend": s.cfg.CacheBackend,
		"sweep":        s.cfg.SweepSchedule,
	}

	if s.exportQueue != nil {
		queueLen := s.exportQueue.Len()
		stats["exportQueueLength"] = queueLen
		stats["exportWorkers"] = s.exportPool.Size()
		stats["exportsWritten"] = s.exportPool.Processed()
		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}

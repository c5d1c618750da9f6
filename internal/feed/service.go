package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kevfeed/internal/cache"
	"kevfeed/internal/catalog"
)

// CacheKey is the single key the upstream snapshot is stored under.
const CacheKey = "upstream_response"

const minUpdateInterval = time.Minute

type Fetcher interface {
	Fetch(ctx context.Context) (*catalog.Snapshot, error)
}

type Service struct {
	store    cache.Store
	fetcher  Fetcher
	logger   *slog.Logger
	channel  Channel
	interval time.Duration

	cancel   context.CancelFunc
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewService wires the cache-aside accessor. An interval of zero or less
// disables the background update loop; anything shorter than a minute is
// raised to a minute.
func NewService(store cache.Store, fetcher Fetcher, logger *slog.Logger, interval time.Duration) *Service {
	if interval > 0 && interval < minUpdateInterval {
		interval = minUpdateInterval
	}
	return &Service{
		store:    store,
		fetcher:  fetcher,
		logger:   logger,
		channel:  DefaultChannel(),
		interval: interval,
	}
}

// WithChannel replaces the channel metadata used by Feed.
func (s *Service) WithChannel(ch Channel) *Service {
	s.channel = ch
	return s
}

func (s *Service) Start() {
	if s.interval <= 0 || s.stopped != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stopped = make(chan struct{})
	go s.updateLoop(ctx)
}

// Stop ends the update loop and waits for an in-flight refresh to abort.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		<-s.stopped
	})
}

func (s *Service) updateLoop(ctx context.Context) {
	defer close(s.stopped)
	s.logger.Info("starting catalog update loop", "interval", s.interval)

	if err := s.Refresh(ctx); err != nil {
		s.logger.Error("initial catalog refresh failed", "err", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.logger.Debug("starting scheduled catalog refresh")
			if err := s.Refresh(ctx); err != nil {
				s.logger.Error("scheduled catalog refresh failed", "err", err)
			}
		case <-ctx.Done():
			s.logger.Info("catalog update loop shutting down")
			return
		}
	}
}

// Refresh fetches upstream and overwrites the cached snapshot. It never
// consults the cache first.
func (s *Service) Refresh(ctx context.Context) error {
	snap, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("error fetching catalog: %w", err)
	}
	if err := s.store.Put(ctx, CacheKey, snap.Raw); err != nil {
		return fmt.Errorf("error updating cache: %w", err)
	}
	s.logger.Info("catalog refreshed",
		"version", snap.Catalog.CatalogVersion,
		"released", snap.Catalog.DateReleased,
		"count", len(snap.Catalog.Vulnerabilities),
	)
	return nil
}

// Catalog returns the cached snapshot, falling back to an upstream fetch
// when the cache is empty, unreadable or holds something undecodable. A
// fetched snapshot is written back; a failed write only logs. A failed fetch
// is returned as is, there is no stale fallback.
func (s *Service) Catalog(ctx context.Context) (*catalog.Snapshot, error) {
	raw, err := s.store.Get(ctx, CacheKey)
	switch {
	case err == nil:
		c, derr := catalog.Decode(raw)
		if derr == nil {
			return &catalog.Snapshot{Catalog: c, Raw: raw}, nil
		}
		s.logger.Warn("cached catalog is undecodable, falling back to an upstream fetch", "err", derr)
	case errors.Is(err, cache.ErrNotFound):
		s.logger.Info("no cached catalog, falling back to an upstream fetch")
	default:
		s.logger.Warn("error reading cache, falling back to an upstream fetch", "err", err)
	}

	snap, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("error fetching catalog: %w", err)
	}
	if err := s.store.Put(ctx, CacheKey, snap.Raw); err != nil {
		s.logger.Warn("error while updating cache", "err", err)
	}
	return snap, nil
}

// Feed renders the current catalog as an RSS document.
func (s *Service) Feed(ctx context.Context) ([]byte, error) {
	snap, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := s.channel.Build(snap.Catalog)
	if err != nil {
		return nil, err
	}
	out, err := doc.Marshal()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}
	return out, nil
}

// Healthy reports whether the cache can be read. An empty cache is healthy.
func (s *Service) Healthy(ctx context.Context) error {
	if _, err := s.store.Get(ctx, CacheKey); err != nil && !errors.Is(err, cache.ErrNotFound) {
		return err
	}
	return nil
}

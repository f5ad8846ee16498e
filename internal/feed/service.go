package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/cropside/feed-engine/internal/config"
	"github.com/cropside/feed-engine/internal/domain"
	"github.com/cropside/feed-engine/internal/existence"
	"github.com/cropside/feed-engine/internal/metrics"
	"github.com/cropside/feed-engine/internal/repositories/feeditem"
	postRepo "github.com/cropside/feed-engine/internal/repositories/post"
	"github.com/cropside/feed-engine/pkg/logger"
)

type session struct {
	paginator *Paginator
	lastUsed  time.Time
}

// Service keeps one Paginator per active viewer and evicts sessions that sit
// idle past the configured TTL. Pagination state never outlives the viewer's
// browsing session.
type Service struct {
	feedItems feeditem.Repository
	posts     postRepo.Repository
	checker   *existence.Checker
	cfg       *config.Config
	clock     clockwork.Clock
	metrics   *metrics.Metrics
	log       logger.Logger

	mu       sync.Mutex
	sessions map[string]*session

	scheduler gocron.Scheduler
}

func NewService(
	feedItems feeditem.Repository,
	posts postRepo.Repository,
	checker *existence.Checker,
	cfg *config.Config,
	clock clockwork.Clock,
	m *metrics.Metrics,
	log logger.Logger,
) *Service {
	return &Service{
		feedItems: feedItems,
		posts:     posts,
		checker:   checker,
		cfg:       cfg,
		clock:     clock,
		metrics:   m,
		log:       log.WithComponent("FeedService"),
		sessions:  make(map[string]*session),
	}
}

// GetFeedPage serves one feed page for the viewer, creating a session on
// first use. Calls for one viewer are expected to arrive sequentially.
func (s *Service) GetFeedPage(ctx context.Context, viewerID string, pageNumber, pageSize int, forceRefresh bool) ([]*domain.Post, error) {
	if pageSize == 0 {
		pageSize = s.cfg.Feed.DefaultPageSize
	}
	paginator := s.sessionFor(viewerID)
	posts, err := paginator.GetPage(ctx, pageNumber, pageSize, forceRefresh)
	if err == nil {
		s.metrics.FeedPagesTotal.WithLabelValues(paginator.source()).Inc()
	}
	return posts, err
}

// RefreshFeed drops the viewer's cursors and cache and returns a fresh first
// page.
func (s *Service) RefreshFeed(ctx context.Context, viewerID string) ([]*domain.Post, error) {
	return s.GetFeedPage(ctx, viewerID, 0, s.cfg.Feed.DefaultPageSize, true)
}

func (s *Service) sessionFor(viewerID string) *Paginator {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[viewerID]
	if !ok {
		sess = &session{
			paginator: NewPaginator(viewerID, s.feedItems, s.posts, s.checker, s.log),
		}
		s.sessions[viewerID] = sess
		s.log.Debug("Opened feed session", "viewer_id", viewerID)
	}
	sess.lastUsed = s.clock.Now()
	return sess.paginator
}

func (s *Service) evictIdle() {
	cutoff := s.clock.Now().Add(-s.cfg.Feed.SessionIdleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	for viewerID, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			delete(s.sessions, viewerID)
			s.log.Debug("Evicted idle feed session", "viewer_id", viewerID)
		}
	}
}

// Start launches the periodic idle-session sweep.
func (s *Service) Start() error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(s.cfg.Feed.SessionIdleTTL),
		gocron.NewTask(s.evictIdle),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}

	scheduler.Start()
	s.scheduler = scheduler
	s.log.Info("Feed session sweep scheduled", "interval", s.cfg.Feed.SessionIdleTTL)
	return nil
}

func (s *Service) Stop() error {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Shutdown()
}

package viewstate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/meseboard/internal/cache"
	"github.com/smallbiznis/meseboard/internal/dashboard/domain"
	"go.uber.org/zap"
)

const defaultTTL = 30 * time.Minute

// Loader fetches the dataset of a year.
type Loader interface {
	Load(ctx context.Context, year int) (*domain.Dataset, error)
}

type Snapshot struct {
	ID    string   `json:"id"`
	Token uint64   `json:"token"`
	View  Rendered `json:"view"`
}

type session struct {
	mu    sync.Mutex
	state State
}

// Store holds view sessions in memory. Sessions expire after ttl without
// access.
type Store struct {
	sessions    cache.Cache[string, *session]
	loader      Loader
	ttl         time.Duration
	detailLimit int
	log         *zap.Logger
}

func NewStore(loader Loader, ttl time.Duration, detailLimit int, log *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		sessions:    cache.NewTTLCache[string, *session](),
		loader:      loader,
		ttl:         ttl,
		detailLimit: detailLimit,
		log:         log.Named("dashboard.viewstate"),
	}
}

// Create opens a session on year and loads it.
func (s *Store) Create(ctx context.Context, year int) (*Snapshot, error) {
	id := uuid.NewString()
	s.sessions.Set(id, &session{}, s.ttl)

	snap, err := s.Dispatch(ctx, id, Action{Type: ActionSelectYear, Year: year})
	if err != nil {
		s.sessions.Delete(id)
		return nil, err
	}
	return snap, nil
}

func (s *Store) Get(id string) (*Snapshot, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return s.snapshot(id, sess), nil
}

func (s *Store) Close(id string) {
	s.sessions.Delete(id)
}

// Dispatch applies a to the session. Actions that need data fetch it
// outside the session lock; if another action superseded the fetch in the
// meantime its result is discarded.
func (s *Store) Dispatch(ctx context.Context, id string, a Action) (*Snapshot, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	next, fetch, err := Reduce(sess.state, a)
	if err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	sess.state = next
	token, year := next.Token, next.Year
	sess.mu.Unlock()

	if fetch {
		s.fetch(ctx, id, sess, token, year)
	}
	return s.snapshot(id, sess), nil
}

func (s *Store) fetch(ctx context.Context, id string, sess *session, token uint64, year int) {
	ds, err := s.loader.Load(ctx, year)
	if err != nil {
		s.log.Warn("view dataset load failed", zap.String("view_id", id), zap.Int("year", year), zap.Error(err))
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	next, applied := ApplyFetch(sess.state, token, ds, err)
	if !applied {
		s.log.Debug("stale fetch discarded",
			zap.String("view_id", id),
			zap.Uint64("token", token),
			zap.Uint64("current_token", sess.state.Token),
		)
		return
	}
	sess.state = next
}

func (s *Store) lookup(id string) (*session, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.sessions.Set(id, sess, s.ttl)
	return sess, nil
}

func (s *Store) snapshot(id string, sess *session) *Snapshot {
	sess.mu.Lock()
	state := sess.state
	sess.mu.Unlock()
	return &Snapshot{ID: id, Token: state.Token, View: Render(state, s.detailLimit)}
}

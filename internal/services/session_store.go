package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoolisten/internal/models"
	"github.com/yoockh/yoolisten/internal/retrieval"
	"github.com/yoockh/yoolisten/internal/utils"
	"golang.org/x/sync/singleflight"
)

const DefaultSessionTTL = time.Hour

// SessionStore owns every live Session. Entries expire after ttl without
// access; expired or deleted sessions have their retrieval index released.
type SessionStore interface {
	// Create builds a fresh index and replaces any live session with the same
	// id. turns seed the chat log.
	Create(ctx context.Context, id, transcript string, turns ...models.ChatTurn) (*models.Session, error)
	// GetOrCreate returns the live session or builds one. Concurrent misses
	// for the same id share a single build.
	GetOrCreate(ctx context.Context, id, transcript string, turns ...models.ChatTurn) (sess *models.Session, created bool, err error)
	Get(id string) (*models.Session, error)
	Touch(id string) bool
	Sweep() int
	Delete(id string) bool
	AppendTurns(id string, turns ...models.ChatTurn) ([]models.ChatTurn, error)
	List() []*models.Session
}

type sessionStore struct {
	c       *gocache.Cache
	builder retrieval.Builder
	log     *logrus.Logger
	ttl     time.Duration
	builds  singleflight.Group
}

func NewSessionStore(builder retrieval.Builder, ttl, sweepInterval time.Duration, log *logrus.Logger) SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s := &sessionStore{
		c:       gocache.New(ttl, sweepInterval),
		builder: builder,
		log:     log,
		ttl:     ttl,
	}
	s.c.OnEvicted(func(id string, v interface{}) {
		if sess, ok := v.(*models.Session); ok {
			go s.release(sess)
		}
	})
	return s
}

func (s *sessionStore) release(sess *models.Session) {
	if sess.Index == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sess.Index.Release(ctx); err != nil {
		s.log.WithError(err).WithField("session_id", sess.ID).Warn("session: release index failed")
	}
}

// indexNamespace is unique per build. Releasing an old index must never
// touch rows of a newer index for the same session id.
func indexNamespace(id string) string {
	return id + ":" + uuid.NewString()
}

func (s *sessionStore) Create(ctx context.Context, id, transcript string, turns ...models.ChatTurn) (*models.Session, error) {
	const op = "SessionStore.Create"

	if id == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	idx, err := s.builder.Build(ctx, indexNamespace(id), transcript)
	if err != nil {
		return nil, utils.E(utils.CodeUpstream, op, "failed to build retrieval index", err)
	}

	sess := models.NewSession(id, transcript, idx, time.Now().UTC(), turns...)
	if old, ok := s.c.Get(id); ok {
		// Set does not fire OnEvicted
		go s.release(old.(*models.Session))
	}
	s.c.Set(id, sess, gocache.DefaultExpiration)

	s.log.WithFields(logrus.Fields{
		"session_id":        id,
		"transcript_length": len([]rune(transcript)),
	}).Info("session created")
	return sess, nil
}

func (s *sessionStore) GetOrCreate(ctx context.Context, id, transcript string, turns ...models.ChatTurn) (*models.Session, bool, error) {
	const op = "SessionStore.GetOrCreate"

	s.Sweep()

	if sess, err := s.Get(id); err == nil {
		return sess, false, nil
	}
	if transcript == "" {
		return nil, false, utils.E(utils.CodeFailedPrecondition, op, "session is absent and no transcript was given", nil)
	}

	type result struct {
		sess    *models.Session
		created bool
	}
	v, err, _ := s.builds.Do(id, func() (interface{}, error) {
		// a build that finished while this caller waited for the group
		if sess, err := s.Get(id); err == nil {
			return result{sess: sess}, nil
		}
		// the build is shared by every waiter, so one caller leaving must not cancel it
		sess, err := s.Create(context.WithoutCancel(ctx), id, transcript, turns...)
		if err != nil {
			return nil, err
		}
		return result{sess: sess, created: true}, nil
	})
	if err != nil {
		return nil, false, err
	}
	r := v.(result)
	return r.sess, r.created, nil
}

func (s *sessionStore) Get(id string) (*models.Session, error) {
	const op = "SessionStore.Get"

	v, ok := s.c.Get(id)
	if !ok {
		return nil, utils.E(utils.CodeNotFound, op, "session not found", utils.ErrNotFound)
	}
	sess := v.(*models.Session)
	s.touch(sess)
	return sess, nil
}

func (s *sessionStore) touch(sess *models.Session) {
	sess.Touch(time.Now().UTC())
	s.c.Set(sess.ID, sess, gocache.DefaultExpiration)
}

func (s *sessionStore) Touch(id string) bool {
	v, ok := s.c.Get(id)
	if !ok {
		return false
	}
	s.touch(v.(*models.Session))
	return true
}

func (s *sessionStore) Sweep() int {
	before := s.c.ItemCount()
	s.c.DeleteExpired()
	removed := before - s.c.ItemCount()
	if removed < 0 {
		removed = 0
	}
	if removed > 0 {
		s.log.WithField("removed", removed).Info("session sweep")
	}
	return removed
}

func (s *sessionStore) Delete(id string) bool {
	if _, ok := s.c.Get(id); !ok {
		return false
	}
	s.c.Delete(id)
	return true
}

func (s *sessionStore) AppendTurns(id string, turns ...models.ChatTurn) ([]models.ChatTurn, error) {
	const op = "SessionStore.AppendTurns"

	v, ok := s.c.Get(id)
	if !ok {
		return nil, utils.E(utils.CodeNotFound, op, "session expired before the reply could be saved", utils.ErrNotFound)
	}
	sess := v.(*models.Session)
	log := sess.AppendTurns(time.Now().UTC(), turns...)
	s.c.Set(id, sess, gocache.DefaultExpiration)
	return log, nil
}

func (s *sessionStore) List() []*models.Session {
	items := s.c.Items()
	out := make([]*models.Session, 0, len(items))
	for _, it := range items {
		if sess, ok := it.Object.(*models.Session); ok {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

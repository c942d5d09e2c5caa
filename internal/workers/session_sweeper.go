package workers

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoolisten/internal/services"
)

// SessionSweeper evicts idle sessions on a fixed interval until ctx ends.
type SessionSweeper struct {
	Sessions services.SessionStore
	Interval time.Duration
	Logger   *logrus.Logger

	done chan struct{}
}

func (w *SessionSweeper) Start(ctx context.Context) error {
	if w.Sessions == nil {
		return errors.New("SessionSweeper missing dependency: Sessions must be set")
	}
	if w.Interval <= 0 {
		w.Interval = 10 * time.Minute
	}
	if w.Logger == nil {
		w.Logger = logrus.New()
	}

	w.done = make(chan struct{})
	go w.run(ctx)
	return nil
}

// Done is closed once the sweeper has stopped.
func (w *SessionSweeper) Done() <-chan struct{} { return w.done }

func (w *SessionSweeper) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	w.Logger.WithField("interval", w.Interval.String()).Info("session sweeper started")
	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			n := w.Sessions.Sweep()
			w.Logger.WithFields(logrus.Fields{
				"removed": n,
				"active":  len(w.Sessions.List()),
			}).Debug("session sweep tick")
		}
	}
}

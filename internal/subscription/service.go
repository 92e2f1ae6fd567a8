// Package subscription runs the lifecycle operations. Gateway calls always
// happen before the ledger write that depends on them, so a failed call
// leaves the ledger untouched.
package subscription

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"voiceclone-backend/internal/catalog"
	"voiceclone-backend/internal/domain/notifications"
	"voiceclone-backend/internal/infra/stripe"
	"voiceclone-backend/internal/ledger"
)

// Notifier receives lifecycle notices. Emit must not block on delivery
// failures; they are the notifier's to log.
type Notifier interface {
	Emit(ctx context.Context, userID uint, kind notifications.Kind, date time.Time)
}

type Service struct {
	ledger   *ledger.Repository
	catalog  *catalog.Service
	gateway  stripe.Gateway
	notifier Notifier
	baseURL  string
	log      *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	repo *ledger.Repository,
	cat *catalog.Service,
	gateway stripe.Gateway,
	notifier Notifier,
	baseURL string,
	log *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		ledger:   repo,
		catalog:  cat,
		gateway:  gateway,
		notifier: notifier,
		baseURL:  strings.TrimRight(baseURL, "/"),
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// Package sweep runs the daily pass that warns about trials and paid
// periods ending. It never writes to the ledger.
package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"voiceclone-backend/internal/domain/notifications"
	"voiceclone-backend/internal/domain/subscriptions"
)

const runTimeout = 15 * time.Minute

type Source interface {
	EndingBetween(ctx context.Context, from, to time.Time, trialing bool) ([]subscriptions.Subscription, error)
}

type Notifier interface {
	Send(ctx context.Context, userID uint, kind notifications.Kind, date time.Time) (bool, error)
}

// Report counts what one run did.
type Report struct {
	TrialEnding      int `json:"trialEnding"`
	TrialExpired     int `json:"trialExpired"`
	SubscriptionOver int `json:"subscriptionOver"`
	Skipped          int `json:"skipped"`
	Failed           int `json:"failed"`
}

type Service struct {
	source   Source
	notifier Notifier
	log      *slog.Logger
	hour     int
	minute   int

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewService schedules the sweep daily at hour:minute UTC.
func NewService(source Source, notifier Notifier, log *slog.Logger, hour, minute int) *Service {
	return &Service{
		source:   source,
		notifier: notifier,
		log:      log,
		hour:     hour,
		minute:   minute,
		stopChan: make(chan struct{}),
	}
}

func (s *Service) Start() {
	s.wg.Add(1)
	go s.loop()
	s.log.Info("sweep scheduled", "at", time.Date(0, 1, 1, s.hour, s.minute, 0, 0, time.UTC).Format("15:04"), "next", s.NextRun(time.Now()))
}

// Stop ends the schedule and waits for a running pass to return.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	s.log.Info("sweep stopped")
}

// NextRun returns the first scheduled time strictly after now.
func (s *Service) NextRun(now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *Service) loop() {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stopChan
		cancel()
	}()

	timer := time.NewTimer(time.Until(s.NextRun(time.Now())))
	for {
		select {
		case <-s.stopChan:
			timer.Stop()
			return
		case fired := <-timer.C:
			runCtx, done := context.WithTimeout(ctx, runTimeout)
			s.RunOnce(runCtx, fired)
			done()
			// Scheduled from the wall clock after each pass.
			timer.Reset(time.Until(s.NextRun(time.Now())))
		}
	}
}

// RunOnce performs one pass as of now. Failures on a single record are
// logged and counted; the pass carries on.
func (s *Service) RunOnce(ctx context.Context, now time.Time) Report {
	now = now.UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	var r Report
	passes := []struct {
		kind     notifications.Kind
		from, to time.Time
		trialing bool
		count    *int
	}{
		{notifications.KindTrialEnding, dayEnd, now.Add(48 * time.Hour), true, &r.TrialEnding},
		{notifications.KindTrialExpired, dayStart, dayEnd, true, &r.TrialExpired},
		{notifications.KindSubscriptionOver, dayStart, dayEnd, false, &r.SubscriptionOver},
	}

	for _, p := range passes {
		if ctx.Err() != nil {
			s.log.Warn("sweep interrupted", "error", ctx.Err())
			break
		}
		subs, err := s.source.EndingBetween(ctx, p.from, p.to, p.trialing)
		if err != nil {
			s.log.Error("sweep query failed", "kind", p.kind, "error", err)
			r.Failed++
			continue
		}
		for _, sub := range subs {
			sent, err := s.notifier.Send(ctx, sub.UserID, p.kind, sub.EndDate)
			switch {
			case err != nil:
				s.log.Error("sweep notification failed", "kind", p.kind, "user_id", sub.UserID, "error", err)
				r.Failed++
			case sent:
				*p.count++
			default:
				r.Skipped++
			}
		}
	}

	s.log.Info("sweep finished",
		"trial_ending", r.TrialEnding,
		"trial_expired", r.TrialExpired,
		"subscription_over", r.SubscriptionOver,
		"skipped", r.Skipped,
		"failed", r.Failed)
	return r
}

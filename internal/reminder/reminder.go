package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "moodcal/internal/log"
	"moodcal/internal/model"
)

const Kind = "reminder"

// Notifier receives reminder notices. session.Notifier satisfies it.
type Notifier interface {
	Notify(n model.Notice)
}

// Scheduler posts "log your mood" notices on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	notifier Notifier
	now      func() time.Time
}

// New validates spec (standard 5-field cron syntax, descriptors such as
// "@daily" allowed) and prepares a Scheduler. It does not start it.
func New(spec string, loc *time.Location, notifier Notifier) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		notifier: notifier,
		now:      time.Now,
	}
	if _, err := s.cron.AddFunc(spec, s.fire); err != nil {
		return nil, fmt.Errorf("reminder: invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running reminder to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	appLog.Info("reminder scheduler started", "next", s.Next().Format(time.RFC3339))
	<-ctx.Done()
	<-s.cron.Stop().Done()
	appLog.Info("reminder scheduler stopped")
}

// Next returns the next time a reminder fires.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(s.now())
}

func (s *Scheduler) fire() {
	s.notifier.Notify(model.Notice{
		Kind:    Kind,
		Message: "How are you feeling? Tap an emoji to log your mood.",
		At:      s.now(),
	})
}

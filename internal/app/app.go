package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"moodcal/internal/config"
	"moodcal/internal/ics"
	appLog "moodcal/internal/log"
	"moodcal/internal/notice"
	"moodcal/internal/picker"
	"moodcal/internal/reminder"
	"moodcal/internal/session"
	"moodcal/internal/share"
	"moodcal/internal/web"
)

// App wires one mood session to its collaborators.
type App struct {
	Config   *config.Config
	Session  *session.Session
	Notices  *notice.Board
	Store    *ics.Store
	History  *ics.History
	Reminder *reminder.Scheduler
}

// New builds an App from cfg. The session starts empty; call Mount before
// recording.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is nil")
	}
	loc := cfg.Location()

	local := make([]ics.LocalCalendar, 0, len(cfg.Calendars))
	var subscribed []ics.Source
	for _, c := range cfg.Calendars {
		switch {
		case c.Path != "":
			local = append(local, ics.LocalCalendar{ID: c.ID, Name: c.Name, Path: c.Path})
		case c.URL != "":
			subscribed = append(subscribed, ics.Source{ID: c.ID, URL: c.URL})
		}
	}

	store := ics.NewStore(local, cfg.CalendarAccess)
	sources := append(store.Sources(), subscribed...)
	history := ics.NewHistory(ics.NewFetcher(cfg.CacheDir()), sources, loc)

	notices := notice.NewBoard(0)
	sess := session.New(
		store,
		picker.New(cfg.ImageDir),
		share.NewOutbox(cfg.ShareDir, cfg.ImageDir),
		notices,
		session.Options{
			ShareMode: cfg.ShareMode,
			Layout:    cfg.TimestampLayout,
			Location:  loc,
		},
	)

	a := &App{
		Config:  cfg,
		Session: sess,
		Notices: notices,
		Store:   store,
		History: history,
	}

	if cfg.Reminder != "" {
		sched, err := reminder.New(cfg.Reminder, loc, notices)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.Reminder = sched
	}

	appLog.Info("app initialized",
		"local_calendars", len(local),
		"subscribed_calendars", len(subscribed),
		"share_mode", string(cfg.ShareMode),
		"reminder", cfg.Reminder,
	)
	return a, nil
}

// Mount requests calendar permission. A denial is logged and surfaced as a
// notice; the session keeps working without calendar events.
func (a *App) Mount(ctx context.Context) {
	if err := a.Session.Mount(ctx); err != nil {
		appLog.Warn("calendar unavailable for this session", "error", err.Error())
	}
}

// Run serves the HTTP API and, when configured, the reminder schedule until
// ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if a.Reminder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Reminder.Run(ctx)
		}()
	}

	srv := web.NewServer(a.Config, a.Session, a.Notices, a.History)
	err := srv.Serve(ctx)
	if err != nil {
		appLog.Error("HTTP server failed", err, "listen", a.Config.Listen)
	}

	cancel()
	wg.Wait()
	return err
}

// PrintHistory writes the last days of moods read back from the calendars
// to out, newest first. It returns a process exit code: 1 when any calendar
// could not be read.
func (a *App) PrintHistory(ctx context.Context, out io.Writer, days int) int {
	if days <= 0 {
		days = 30
	}
	loc := a.Config.Location()
	now := time.Now().In(loc)

	moods, errs := a.History.Moods(ctx, now.AddDate(0, 0, -days), now)
	for _, err := range errs {
		appLog.Error("history source failed", err)
	}
	for _, m := range moods {
		fmt.Fprintf(out, "%s  %s  (%s)\n", m.At.In(loc).Format(a.Config.TimestampLayout), m.Mood, m.CalendarID)
	}
	if len(moods) == 0 {
		fmt.Fprintln(out, "No moods logged yet.")
	}
	if len(errs) > 0 {
		return 1
	}
	return 0
}

// RecordOnce records a single mood, prints its log line to out and any
// notices to errOut. Exit codes: 0 recorded, 1 recorded but the calendar
// event failed, 2 nothing recorded.
func (a *App) RecordOnce(ctx context.Context, out, errOut io.Writer, mood string) int {
	entry, err := a.Session.RecordMood(ctx, mood)
	for _, n := range a.Notices.Drain() {
		fmt.Fprintf(errOut, "%s: %s\n", n.Kind, n.Message)
	}
	if !session.Recorded(err) {
		appLog.Error("record failed", err, "mood", mood)
		fmt.Fprintf(errOut, "error: %v\n", err)
		return 2
	}
	fmt.Fprintln(out, entry.Line())
	if err != nil {
		return 1
	}
	return 0
}

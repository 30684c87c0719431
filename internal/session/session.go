package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	appLog "moodcal/internal/log"
	"moodcal/internal/model"
)

const (
	// EventTimeZone and EventLocation are stamped on every mood event.
	EventTimeZone = "GMT"
	EventLocation = "Mood Tracker"

	defaultLayout = "1/2/2006, 3:04:05 PM"
)

// Calendar is the device calendar plus its permission prompt.
type Calendar interface {
	RequestPermission(ctx context.Context) (bool, error)
	ListCalendars(ctx context.Context) ([]model.Calendar, error)
	CreateEvent(ctx context.Context, calendarID string, req model.EventRequest) (string, error)
}

// ImagePicker lets the user choose a photo. ok is false when the user
// cancelled.
type ImagePicker interface {
	PickImage(ctx context.Context) (uri string, ok bool, err error)
}

// Sharer hands a payload to the platform share target.
type Sharer interface {
	IsAvailable(ctx context.Context) bool
	Share(ctx context.Context, payload model.SharePayload) error
}

// Notifier shows one-shot messages to the user.
type Notifier interface {
	Notify(n model.Notice)
}

// Options tunes a Session. Zero values get sensible defaults.
type Options struct {
	ShareMode model.ShareMode
	// Layout is the time layout used to render entry timestamps.
	Layout string
	// Location is the zone timestamps are rendered in. Nil means time.Local.
	Location *time.Location
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Session is the in-memory mood log of one mounted screen. It is created
// empty, only ever grows at the head, and is dropped with the screen.
//
// A Session is safe for concurrent use. Collaborator calls are made outside
// the lock, so two records in flight may complete in either order; both
// entries always end up in the log.
type Session struct {
	calendar Calendar
	picker   ImagePicker
	sharer   Sharer
	notifier Notifier
	opts     Options

	mu sync.RWMutex
	// entries is kept oldest-first; readers see it reversed.
	entries []model.Entry
}

// New constructs an empty Session. calendar, picker and sharer may be nil,
// in which case the matching operations degrade to their "not available"
// behaviour. notifier may be nil to drop notices.
func New(calendar Calendar, picker ImagePicker, sharer Sharer, notifier Notifier, opts Options) *Session {
	if !opts.ShareMode.Valid() {
		opts.ShareMode = model.ShareTextSummary
	}
	if opts.Layout == "" {
		opts.Layout = defaultLayout
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		calendar: calendar,
		picker:   picker,
		sharer:   sharer,
		notifier: notifier,
		opts:     opts,
		entries:  make([]model.Entry, 0),
	}
}

// ShareMode returns the share policy this session was built with.
func (s *Session) ShareMode() model.ShareMode {
	return s.opts.ShareMode
}

// Mount asks for calendar permission once. A denial is reported as a notice
// and returned as ErrPermissionDenied; the session stays usable either way.
func (s *Session) Mount(ctx context.Context) error {
	if s.calendar == nil {
		return nil
	}
	granted, err := s.calendar.RequestPermission(ctx)
	if err != nil {
		s.notify(NoticePermissionDenied, "Permission needed to access calendar")
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	if !granted {
		appLog.Warn("calendar permission denied")
		s.notify(NoticePermissionDenied, "Permission needed to access calendar")
		return ErrPermissionDenied
	}
	appLog.Debug("calendar permission granted")
	return nil
}

// RecordMood logs one of the emoji moods and writes a calendar event for it.
//
// The entry is part of the log as soon as the method returns, even when err
// is non-nil: calendar failures are reported but never undo the record.
func (s *Session) RecordMood(ctx context.Context, mood string) (model.Entry, error) {
	if !model.IsMood(mood) {
		return model.Entry{}, fmt.Errorf("%w: %q", ErrUnknownMood, mood)
	}
	return s.record(ctx, mood, "")
}

// RecordImageMood logs a photo-backed entry. The uri is stored verbatim.
// Like RecordMood, a non-nil error after a successful append only describes
// the calendar side effect.
func (s *Session) RecordImageMood(ctx context.Context, uri string) (model.Entry, error) {
	if strings.TrimSpace(uri) == "" {
		return model.Entry{}, ErrEmptyImageURI
	}
	return s.record(ctx, model.ImageMood, uri)
}

// PickImage runs the image picker and records the chosen photo. recorded is
// false when the user cancelled; nothing is appended in that case.
func (s *Session) PickImage(ctx context.Context) (entry model.Entry, recorded bool, err error) {
	if s.picker == nil {
		return model.Entry{}, false, ErrNoImagePicker
	}
	uri, ok, err := s.picker.PickImage(ctx)
	if err != nil {
		return model.Entry{}, false, fmt.Errorf("pick image: %w", err)
	}
	if !ok || uri == "" {
		appLog.Debug("image pick cancelled")
		return model.Entry{}, false, nil
	}
	entry, err = s.RecordImageMood(ctx, uri)
	return entry, true, err
}

func (s *Session) record(ctx context.Context, mood, image string) (model.Entry, error) {
	now := s.opts.Now()
	entry := model.Entry{
		Mood:      mood,
		Timestamp: now.In(s.opts.Location).Format(s.opts.Layout),
		Image:     image,
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	size := len(s.entries)
	s.mu.Unlock()

	appLog.Info("mood recorded", "mood", mood, "has_image", image != "", "log_size", size)

	return entry, s.addToCalendar(ctx, entry, now)
}

// addToCalendar writes the event for an already appended entry. Any error it
// returns wraps ErrCalendarWrite.
func (s *Session) addToCalendar(ctx context.Context, entry model.Entry, now time.Time) error {
	if err := s.createEvent(ctx, entry, now); err != nil {
		return fmt.Errorf("%w: %w", ErrCalendarWrite, err)
	}
	return nil
}

func (s *Session) createEvent(ctx context.Context, entry model.Entry, now time.Time) error {
	if s.calendar == nil {
		s.notify(NoticeNoCalendar, "No calendar found.")
		return ErrNoCalendarAvailable
	}

	calendars, err := s.calendar.ListCalendars(ctx)
	if err != nil {
		appLog.Error("list calendars failed", err)
		s.notify(NoticeCalendarError, "Could not read calendars.")
		return fmt.Errorf("list calendars: %w", err)
	}
	if len(calendars) == 0 {
		appLog.Warn("no calendar found; skipping event", "mood", entry.Mood)
		s.notify(NoticeNoCalendar, "No calendar found.")
		return ErrNoCalendarAvailable
	}

	target := calendars[0]
	req := model.EventRequest{
		Title:    EventTitle(entry.Mood),
		Start:    now,
		End:      now,
		TimeZone: EventTimeZone,
		Location: EventLocation,
	}
	eventID, err := s.calendar.CreateEvent(ctx, target.ID, req)
	if err != nil {
		appLog.Error("create calendar event failed", err, "calendar", target.ID, "mood", entry.Mood)
		s.notify(NoticeCalendarError, "Could not add mood to calendar.")
		return fmt.Errorf("create event on %s: %w", target.ID, err)
	}

	appLog.Debug("calendar event created", "calendar", target.ID, "event", eventID)
	return nil
}

// EventTitle is the calendar event title for a mood token.
func EventTitle(mood string) string {
	return "Mood: " + mood
}

// Snapshot returns the log newest-first. The returned slice is a copy.
func (s *Session) Snapshot() []model.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Entry, len(s.entries))
	for i, e := range s.entries {
		out[len(s.entries)-1-i] = e
	}
	return out
}

// Len returns the number of recorded entries.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Summarize renders the log newest-first as "{timestamp} - {mood}" lines.
// An empty log summarizes to "".
func (s *Session) Summarize() string {
	entries := s.Snapshot()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Timestamp + " - " + e.Mood
	}
	return strings.Join(lines, "\n")
}

// Share hands the log to the share service according to the session's
// ShareMode. Every failure is also posted as a notice.
func (s *Session) Share(ctx context.Context) error {
	if s.sharer == nil || !s.sharer.IsAvailable(ctx) {
		s.notify(NoticeShareUnavailable, "Sharing is not available on this device")
		return ErrShareUnavailable
	}

	payload, err := s.sharePayload()
	if err != nil {
		return err
	}

	if err := s.sharer.Share(ctx, payload); err != nil {
		appLog.Error("share failed", err, "mode", string(s.opts.ShareMode))
		s.notify(NoticeShareError, "Sharing failed.")
		return fmt.Errorf("share: %w", err)
	}

	appLog.Info("mood log shared", "mode", string(s.opts.ShareMode), "text", payload.IsText())
	return nil
}

func (s *Session) sharePayload() (model.SharePayload, error) {
	switch s.opts.ShareMode {
	case model.ShareLastImage:
		entries := s.Snapshot()
		if len(entries) == 0 || !entries[0].HasImage() {
			s.notify(NoticeEmptyShareTarget, "No image to share")
			return model.SharePayload{}, ErrEmptyShareTarget
		}
		return model.SharePayload{URI: entries[0].Image}, nil
	default:
		summary := s.Summarize()
		if summary == "" {
			s.notify(NoticeEmptyShareTarget, "No moods logged yet")
			return model.SharePayload{}, ErrEmptyShareTarget
		}
		return model.SharePayload{Text: summary}, nil
	}
}

func (s *Session) notify(kind, msg string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(model.Notice{Kind: kind, Message: msg, At: s.opts.Now()})
}

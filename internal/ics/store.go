package ics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "moodcal/internal/log"
	"moodcal/internal/model"
)

const productID = "-//moodcal//Mood Tracker//EN"

var (
	ErrNotPermitted    = errors.New("ics: calendar access not granted")
	ErrUnknownCalendar = errors.New("ics: unknown calendar")
)

// LocalCalendar is a writable calendar stored as a single .ics file.
type LocalCalendar struct {
	ID   string
	Name string
	Path string
}

// Store is a calendar service backed by local .ics files. It implements
// session.Calendar.
type Store struct {
	calendars []LocalCalendar
	access    bool

	mu  sync.Mutex
	now func() time.Time
}

// NewStore creates a Store over calendars, in enumeration order. access is
// the answer RequestPermission gives.
func NewStore(calendars []LocalCalendar, access bool) *Store {
	return &Store{
		calendars: calendars,
		access:    access,
		now:       time.Now,
	}
}

// RequestPermission reports whether calendar writes are allowed and, if so,
// makes sure every calendar directory exists.
func (s *Store) RequestPermission(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.access {
		return false, nil
	}
	for _, c := range s.calendars {
		if err := os.MkdirAll(filepath.Dir(c.Path), 0o700); err != nil {
			return false, fmt.Errorf("ics: prepare %s: %w", c.ID, err)
		}
	}
	return true, nil
}

// ListCalendars returns the configured calendars in order.
func (s *Store) ListCalendars(_ context.Context) ([]model.Calendar, error) {
	out := make([]model.Calendar, 0, len(s.calendars))
	for _, c := range s.calendars {
		out = append(out, model.Calendar{ID: c.ID, Name: c.Name, Writable: true})
	}
	return out, nil
}

// CreateEvent appends a VEVENT to the calendar's file and returns its UID.
// The whole file is rewritten atomically. Times are always written in UTC,
// which covers the GMT zone mood events ask for.
func (s *Store) CreateEvent(ctx context.Context, calendarID string, req model.EventRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.access {
		return "", ErrNotPermitted
	}
	c, ok := s.lookup(calendarID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCalendar, calendarID)
	}

	cal, err := loadCalendar(c)
	if err != nil {
		return "", err
	}

	uid := uuid.NewString()
	now := s.now()

	ev := cal.AddEvent(uid)
	ev.SetCreatedTime(now)
	ev.SetDtStampTime(now)
	ev.SetStartAt(req.Start)
	ev.SetEndAt(req.End)
	ev.SetSummary(req.Title)
	if req.Location != "" {
		ev.SetLocation(req.Location)
	}

	if err := writeAtomic(c.Path, []byte(cal.Serialize())); err != nil {
		return "", fmt.Errorf("ics: write %s: %w", c.Path, err)
	}

	appLog.Info("calendar event written", "calendar", c.ID, "uid", uid, "title", req.Title)
	return uid, nil
}

// Sources returns the local calendars as history sources.
func (s *Store) Sources() []Source {
	out := make([]Source, 0, len(s.calendars))
	for _, c := range s.calendars {
		out = append(out, Source{ID: c.ID, Path: c.Path})
	}
	return out
}

func (s *Store) lookup(id string) (LocalCalendar, bool) {
	for _, c := range s.calendars {
		if c.ID == id {
			return c, true
		}
	}
	return LocalCalendar{}, false
}

func loadCalendar(c LocalCalendar) (*ical.Calendar, error) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cal := ical.NewCalendar()
			cal.SetProductId(productID)
			cal.SetMethod(ical.MethodPublish)
			cal.SetXWRCalName(c.Name)
			return cal, nil
		}
		return nil, fmt.Errorf("ics: read %s: %w", c.Path, err)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ics: parse %s: %w", c.Path, err)
	}
	return cal, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".moodcal-ics-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moodcal/internal/model"
)

type fakeCalendar struct {
	mu        sync.Mutex
	granted   bool
	permErr   error
	calendars []model.Calendar
	listErr   error
	createErr error
	created   []createdEvent
}

type createdEvent struct {
	calendarID string
	req        model.EventRequest
}

func (f *fakeCalendar) RequestPermission(context.Context) (bool, error) {
	return f.granted, f.permErr
}

func (f *fakeCalendar) ListCalendars(context.Context) ([]model.Calendar, error) {
	return f.calendars, f.listErr
}

func (f *fakeCalendar) CreateEvent(_ context.Context, calendarID string, req model.EventRequest) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, createdEvent{calendarID: calendarID, req: req})
	return "evt", nil
}

type fakePicker struct {
	uri string
	ok  bool
	err error
}

func (f fakePicker) PickImage(context.Context) (string, bool, error) {
	return f.uri, f.ok, f.err
}

type fakeSharer struct {
	available bool
	err       error
	shared    []model.SharePayload
}

func (f *fakeSharer) IsAvailable(context.Context) bool { return f.available }

func (f *fakeSharer) Share(_ context.Context, p model.SharePayload) error {
	if f.err != nil {
		return f.err
	}
	f.shared = append(f.shared, p)
	return nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []model.Notice
}

func (f *fakeNotifier) Notify(n model.Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, n)
}

func (f *fakeNotifier) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.notices))
	for _, n := range f.notices {
		out = append(out, n.Kind)
	}
	return out
}

var fixedNow = time.Date(2025, time.March, 4, 15, 4, 5, 0, time.UTC)

func testOptions(mode model.ShareMode) Options {
	return Options{
		ShareMode: mode,
		Location:  time.UTC,
		Now:       func() time.Time { return fixedNow },
	}
}

func oneCalendar() *fakeCalendar {
	return &fakeCalendar{granted: true, calendars: []model.Calendar{{ID: "moods", Name: "Moods", Writable: true}, {ID: "other"}}}
}

func TestRecordMoodPrependsNewestFirst(t *testing.T) {
	cal := oneCalendar()
	s := New(cal, nil, nil, nil, testOptions(model.ShareTextSummary))

	_, err := s.RecordMood(context.Background(), "😊")
	require.NoError(t, err)
	_, err = s.RecordMood(context.Background(), "😢")
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "😢", snap[0].Mood)
	assert.Equal(t, "😊", snap[1].Mood)
	assert.Empty(t, snap[0].Image)
	assert.Empty(t, snap[1].Image)
}

func TestSnapshotIsReverseCallOrder(t *testing.T) {
	s := New(oneCalendar(), nil, nil, nil, testOptions(model.ShareTextSummary))
	calls := []string{"😊", "😐", "IMG:a", "😴", "IMG:b", "😂"}

	for _, c := range calls {
		var err error
		if len(c) > 4 && c[:4] == "IMG:" {
			_, err = s.RecordImageMood(context.Background(), "file://"+c[4:]+".jpg")
		} else {
			_, err = s.RecordMood(context.Background(), c)
		}
		require.NoError(t, err)
	}

	snap := s.Snapshot()
	require.Len(t, snap, len(calls))
	assert.Equal(t, len(calls), s.Len())
	for i, c := range calls {
		got := snap[len(calls)-1-i]
		if c[:4] == "IMG:" {
			assert.Equal(t, model.ImageMood, got.Mood)
			assert.Equal(t, "file://"+c[4:]+".jpg", got.Image)
		} else {
			assert.Equal(t, c, got.Mood)
			assert.Empty(t, got.Image)
		}
	}
}

func TestRecordMoodCreatesZeroDurationEventOnFirstCalendar(t *testing.T) {
	cal := oneCalendar()
	s := New(cal, nil, nil, nil, testOptions(model.ShareTextSummary))

	entry, err := s.RecordMood(context.Background(), "🥰")
	require.NoError(t, err)
	assert.Equal(t, "3/4/2025, 3:04:05 PM", entry.Timestamp)

	require.Len(t, cal.created, 1)
	ev := cal.created[0]
	assert.Equal(t, "moods", ev.calendarID)
	assert.Equal(t, "Mood: 🥰", ev.req.Title)
	assert.Equal(t, fixedNow, ev.req.Start)
	assert.Equal(t, ev.req.Start, ev.req.End)
	assert.Equal(t, "GMT", ev.req.TimeZone)
	assert.Equal(t, "Mood Tracker", ev.req.Location)
}

func TestRecordImageMoodOnEmptyLog(t *testing.T) {
	cal := oneCalendar()
	s := New(cal, nil, nil, nil, testOptions(model.ShareTextSummary))

	entry, err := s.RecordImageMood(context.Background(), "file://a.jpg")
	require.NoError(t, err)
	assert.Equal(t, model.ImageMood, entry.Mood)
	assert.Equal(t, "file://a.jpg", entry.Image)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, entry, snap[0])
	require.Len(t, cal.created, 1)
	assert.Equal(t, "Mood: ImageMood", cal.created[0].req.Title)
}

func TestRecordRejectsInvalidInput(t *testing.T) {
	s := New(oneCalendar(), nil, nil, nil, testOptions(model.ShareTextSummary))

	_, err := s.RecordMood(context.Background(), "🙂")
	assert.ErrorIs(t, err, ErrUnknownMood)
	_, err = s.RecordMood(context.Background(), model.ImageMood)
	assert.ErrorIs(t, err, ErrUnknownMood)
	_, err = s.RecordImageMood(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyImageURI)

	assert.Empty(t, s.Snapshot())
}

func TestNoCalendarStillAppends(t *testing.T) {
	cal := &fakeCalendar{granted: true}
	notes := &fakeNotifier{}
	s := New(cal, nil, nil, notes, testOptions(model.ShareTextSummary))

	entry, err := s.RecordMood(context.Background(), "😐")
	assert.ErrorIs(t, err, ErrNoCalendarAvailable)
	assert.Equal(t, "😐", entry.Mood)
	assert.Len(t, s.Snapshot(), 1)
	assert.Equal(t, []string{NoticeNoCalendar}, notes.kinds())
}

func TestCalendarFailuresAreNonFatal(t *testing.T) {
	boom := errors.New("boom")

	t.Run("list fails", func(t *testing.T) {
		notes := &fakeNotifier{}
		s := New(&fakeCalendar{listErr: boom}, nil, nil, notes, testOptions(model.ShareTextSummary))
		_, err := s.RecordMood(context.Background(), "😊")
		assert.ErrorIs(t, err, boom)
		assert.Len(t, s.Snapshot(), 1)
		assert.Equal(t, []string{NoticeCalendarError}, notes.kinds())
	})

	t.Run("create fails", func(t *testing.T) {
		cal := oneCalendar()
		cal.createErr = boom
		s := New(cal, nil, nil, nil, testOptions(model.ShareTextSummary))
		_, err := s.RecordImageMood(context.Background(), "file://x.png")
		assert.ErrorIs(t, err, boom)
		assert.Len(t, s.Snapshot(), 1)
	})

	t.Run("nil calendar", func(t *testing.T) {
		s := New(nil, nil, nil, nil, testOptions(model.ShareTextSummary))
		_, err := s.RecordMood(context.Background(), "😊")
		assert.ErrorIs(t, err, ErrNoCalendarAvailable)
		assert.Len(t, s.Snapshot(), 1)
	})
}

func TestRecordedSeparatesCalendarFailures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		calendar *fakeCalendar
		mood     string
		recorded bool
	}{
		{name: "event written", calendar: oneCalendar(), mood: "😊", recorded: true},
		{name: "no calendar", calendar: &fakeCalendar{granted: true}, mood: "😊", recorded: true},
		{name: "list fails", calendar: &fakeCalendar{listErr: boom}, mood: "😢", recorded: true},
		{name: "unknown mood", calendar: oneCalendar(), mood: "🙃", recorded: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.calendar, nil, nil, nil, testOptions(model.ShareTextSummary))
			_, err := s.RecordMood(context.Background(), tt.mood)
			assert.Equal(t, tt.recorded, Recorded(err))
			assert.Equal(t, tt.recorded, s.Len() == 1)
			if err != nil && tt.recorded {
				assert.ErrorIs(t, err, ErrCalendarWrite)
			}
		})
	}

	_, err := New(oneCalendar(), nil, nil, nil, testOptions(model.ShareTextSummary)).RecordImageMood(context.Background(), "")
	assert.False(t, Recorded(err))
}

func TestMountPermission(t *testing.T) {
	notes := &fakeNotifier{}
	s := New(&fakeCalendar{granted: false, calendars: []model.Calendar{{ID: "c"}}}, nil, nil, notes, testOptions(model.ShareTextSummary))

	err := s.Mount(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, []string{NoticePermissionDenied}, notes.kinds())

	// Denial does not stop the session from recording.
	_, err = s.RecordMood(context.Background(), "😊")
	assert.NoError(t, err)
	assert.Len(t, s.Snapshot(), 1)

	granted := New(oneCalendar(), nil, nil, nil, testOptions(model.ShareTextSummary))
	assert.NoError(t, granted.Mount(context.Background()))
}

func TestPickImage(t *testing.T) {
	t.Run("cancelled adds nothing", func(t *testing.T) {
		s := New(oneCalendar(), fakePicker{ok: false}, nil, nil, testOptions(model.ShareTextSummary))
		_, recorded, err := s.PickImage(context.Background())
		require.NoError(t, err)
		assert.False(t, recorded)
		assert.Empty(t, s.Snapshot())
	})

	t.Run("picked uri is recorded", func(t *testing.T) {
		s := New(oneCalendar(), fakePicker{uri: "file://cat.jpg", ok: true}, nil, nil, testOptions(model.ShareTextSummary))
		entry, recorded, err := s.PickImage(context.Background())
		require.NoError(t, err)
		assert.True(t, recorded)
		assert.Equal(t, "file://cat.jpg", entry.Image)
		assert.Len(t, s.Snapshot(), 1)
	})

	t.Run("picker error", func(t *testing.T) {
		s := New(oneCalendar(), fakePicker{err: errors.New("no access")}, nil, nil, testOptions(model.ShareTextSummary))
		_, recorded, err := s.PickImage(context.Background())
		assert.Error(t, err)
		assert.False(t, recorded)
		assert.Empty(t, s.Snapshot())
	})

	t.Run("no picker", func(t *testing.T) {
		s := New(oneCalendar(), nil, nil, nil, testOptions(model.ShareTextSummary))
		_, _, err := s.PickImage(context.Background())
		assert.ErrorIs(t, err, ErrNoImagePicker)
	})
}

func TestSummarize(t *testing.T) {
	s := New(oneCalendar(), nil, nil, nil, testOptions(model.ShareTextSummary))
	assert.Equal(t, "", s.Summarize())

	_, _ = s.RecordMood(context.Background(), "😊")
	_, _ = s.RecordImageMood(context.Background(), "file://a.jpg")

	want := "3/4/2025, 3:04:05 PM - ImageMood\n3/4/2025, 3:04:05 PM - 😊"
	assert.Equal(t, want, s.Summarize())
	assert.Equal(t, s.Summarize(), s.Summarize())
}

func TestShareTextSummary(t *testing.T) {
	sharer := &fakeSharer{available: true}
	notes := &fakeNotifier{}
	s := New(oneCalendar(), nil, sharer, notes, testOptions(model.ShareTextSummary))

	assert.ErrorIs(t, s.Share(context.Background()), ErrEmptyShareTarget)
	assert.Equal(t, []string{NoticeEmptyShareTarget}, notes.kinds())

	_, _ = s.RecordMood(context.Background(), "😂")
	require.NoError(t, s.Share(context.Background()))
	require.Len(t, sharer.shared, 1)
	assert.Equal(t, model.SharePayload{Text: "3/4/2025, 3:04:05 PM - 😂"}, sharer.shared[0])
}

func TestShareLastImage(t *testing.T) {
	sharer := &fakeSharer{available: true}
	s := New(oneCalendar(), nil, sharer, nil, testOptions(model.ShareLastImage))

	_, _ = s.RecordImageMood(context.Background(), "file://old.jpg")
	require.NoError(t, s.Share(context.Background()))
	assert.Equal(t, model.SharePayload{URI: "file://old.jpg"}, sharer.shared[0])

	// Only the newest entry counts, even when an older one has an image.
	_, _ = s.RecordMood(context.Background(), "😴")
	assert.ErrorIs(t, s.Share(context.Background()), ErrEmptyShareTarget)
	assert.Len(t, sharer.shared, 1)
}

func TestShareUnavailable(t *testing.T) {
	notes := &fakeNotifier{}
	s := New(oneCalendar(), nil, &fakeSharer{available: false}, notes, testOptions(model.ShareTextSummary))
	_, _ = s.RecordMood(context.Background(), "😊")

	assert.ErrorIs(t, s.Share(context.Background()), ErrShareUnavailable)
	assert.Equal(t, []string{NoticeShareUnavailable}, notes.kinds())

	nilSharer := New(oneCalendar(), nil, nil, nil, testOptions(model.ShareTextSummary))
	assert.ErrorIs(t, nilSharer.Share(context.Background()), ErrShareUnavailable)
}

func TestShareFailureIsWrapped(t *testing.T) {
	boom := errors.New("disk full")
	s := New(oneCalendar(), nil, &fakeSharer{available: true, err: boom}, nil, testOptions(model.ShareTextSummary))
	_, _ = s.RecordMood(context.Background(), "😊")

	assert.ErrorIs(t, s.Share(context.Background()), boom)
}

func TestConcurrentRecordsAllLand(t *testing.T) {
	s := New(oneCalendar(), nil, nil, nil, testOptions(model.ShareTextSummary))

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.RecordMood(context.Background(), model.Moods[i%len(model.Moods)])
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.Snapshot(), n)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New(oneCalendar(), nil, nil, nil, testOptions(model.ShareTextSummary))
	_, _ = s.RecordMood(context.Background(), "😊")

	snap := s.Snapshot()
	snap[0].Mood = "tampered"

	assert.Equal(t, "😊", s.Snapshot()[0].Mood)
}

func TestNewDefaults(t *testing.T) {
	s := New(nil, nil, nil, nil, Options{ShareMode: "weird"})
	assert.Equal(t, model.ShareTextSummary, s.ShareMode())
}

package ics

import (
	"context"
	"sort"
	"strings"
	"time"

	appLog "moodcal/internal/log"
)

// moodTitlePrefix matches the titles the session writes ("Mood: 😊").
const moodTitlePrefix = "Mood: "

// MoodEvent is a mood read back from a calendar.
type MoodEvent struct {
	Mood       string    `json:"mood"`
	CalendarID string    `json:"calendar_id"`
	UID        string    `json:"uid"`
	At         time.Time `json:"at"`
}

// History reads past mood events out of the configured calendars. Unlike
// the session log it survives restarts, because the calendar does.
type History struct {
	fetcher *Fetcher
	sources []Source
	loc     *time.Location
}

func NewHistory(fetcher *Fetcher, sources []Source, loc *time.Location) *History {
	if loc == nil {
		loc = time.Local
	}
	return &History{fetcher: fetcher, sources: sources, loc: loc}
}

// Moods returns mood events in [from, to], newest first. Per-source
// failures are returned alongside whatever could be read.
func (h *History) Moods(ctx context.Context, from, to time.Time) ([]MoodEvent, []error) {
	results, errs := h.fetcher.FetchAll(ctx, h.sources)

	parsed := make([]ParsedEvent, 0)
	for _, res := range results {
		if len(res.Body) == 0 {
			continue
		}
		events, err := ParseICS(res.Source, res.Body)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		parsed = append(parsed, events...)
	}

	expanded, err := ExpandOccurrences(parsed, ExpandConfig{
		DisplayLocation: h.loc,
		RangeStart:      from,
		RangeEnd:        to,
	})
	if err != nil {
		return nil, append(errs, err)
	}

	out := make([]MoodEvent, 0)
	for _, occ := range expanded.Occurrences {
		mood, ok := strings.CutPrefix(occ.Summary, moodTitlePrefix)
		if !ok {
			continue
		}
		out = append(out, MoodEvent{
			Mood:       mood,
			CalendarID: occ.SourceID,
			UID:        occ.UID,
			At:         occ.Start,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].At.After(out[j].At)
	})

	appLog.Debug("mood history read", "sources", len(h.sources), "moods", len(out), "errors", len(errs))
	return out, errs
}

package web

import (
	"time"

	"moodcal/internal/ics"
	"moodcal/internal/model"
)

type recordMoodRequest struct {
	Mood string `json:"mood"`
}

type recordImageRequest struct {
	URI string `json:"uri"`
}

// entryDTO is a log entry plus the line the list view shows for it.
type entryDTO struct {
	Mood      string `json:"mood"`
	Timestamp string `json:"timestamp"`
	Image     string `json:"image,omitempty"`
	Line      string `json:"line"`
}

func toEntryDTO(e model.Entry) entryDTO {
	return entryDTO{
		Mood:      e.Mood,
		Timestamp: e.Timestamp,
		Image:     e.Image,
		Line:      e.Line(),
	}
}

type recordResponse struct {
	Entry   entryDTO `json:"entry"`
	Warning string   `json:"warning,omitempty"`
}

type logsResponse struct {
	Entries []entryDTO `json:"entries"`
	Count   int        `json:"count"`
}

type moodsResponse struct {
	Moods []string `json:"moods"`
}

type shareResponse struct {
	Status string          `json:"status"`
	Mode   model.ShareMode `json:"mode"`
}

type noticesResponse struct {
	Notices []model.Notice `json:"notices"`
}

type infoResponse struct {
	Title     string          `json:"title"`
	Text      string          `json:"text"`
	ShareMode model.ShareMode `json:"share_mode"`
}

type historyResponse struct {
	Moods           []ics.MoodEvent `json:"moods"`
	RangeStart      time.Time       `json:"range_start"`
	RangeEnd        time.Time       `json:"range_end"`
	DisplayTimeZone string          `json:"display_timezone"`
	FailedSources   int             `json:"failed_sources,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

package model

import "time"

// ImageMood is the mood token used for entries that originate from a photo
// rather than an emoji tap.
const ImageMood = "ImageMood"

// Moods is the fixed set of selectable emoji tokens, in display order.
var Moods = []string{"😊", "😢", "😐", "😴", "🥰", "🤬", "😂"}

// IsMood reports whether s is one of the selectable emoji tokens.
func IsMood(s string) bool {
	for _, m := range Moods {
		if m == s {
			return true
		}
	}
	return false
}

// Entry is one logged mood. Timestamp is a display string rendered when the
// entry was created; it is not meant to be parsed back.
type Entry struct {
	Mood      string `json:"mood"`
	Timestamp string `json:"timestamp"`
	Image     string `json:"image,omitempty"`
}

// HasImage reports whether the entry carries a photo reference.
func (e Entry) HasImage() bool {
	return e.Image != ""
}

// Line renders the entry the way the log list shows it.
func (e Entry) Line() string {
	return e.Timestamp + " - Mood: " + e.Mood
}

// ShareMode selects what the share action hands to the share service.
type ShareMode string

const (
	ShareLastImage   ShareMode = "last_image"
	ShareTextSummary ShareMode = "text_summary"
)

// Valid reports whether m is a known share mode.
func (m ShareMode) Valid() bool {
	return m == ShareLastImage || m == ShareTextSummary
}

// Calendar is a calendar the device (or config) exposes for event writes.
type Calendar struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Writable bool   `json:"writable"`
}

// EventRequest describes an event to create on a calendar.
type EventRequest struct {
	Title    string
	Start    time.Time
	End      time.Time
	TimeZone string
	Location string
}

// SharePayload is either a file/URI reference or a block of text.
type SharePayload struct {
	URI  string `json:"uri,omitempty"`
	Text string `json:"text,omitempty"`
}

// IsText reports whether the payload carries text rather than a URI.
func (p SharePayload) IsText() bool {
	return p.URI == ""
}

// Notice is a one-shot, user-visible message.
type Notice struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Occurrence represents a single concrete instance of a calendar event read
// back from a calendar (after recurrence expansion and timezone
// normalization).
type Occurrence struct {
	SourceID string // calendar source ID
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the local start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}

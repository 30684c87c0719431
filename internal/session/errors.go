package session

import "errors"

// Every error below is non-fatal: the session keeps accepting records after
// returning any of them.
var (
	ErrPermissionDenied    = errors.New("calendar permission denied")
	ErrNoCalendarAvailable = errors.New("no calendar available")
	ErrShareUnavailable    = errors.New("sharing is not available")
	ErrEmptyShareTarget    = errors.New("nothing to share")

	// ErrCalendarWrite wraps every failure that happens after an entry was
	// appended, so callers can tell "logged, but no event" from "not logged".
	ErrCalendarWrite = errors.New("mood logged but calendar event not written")

	ErrUnknownMood   = errors.New("unknown mood")
	ErrEmptyImageURI = errors.New("image uri is empty")
	ErrNoImagePicker = errors.New("no image picker configured")
)

// Recorded reports whether a record call that returned err appended its
// entry. Only calendar side-effect failures leave the entry in place.
func Recorded(err error) bool {
	return err == nil || errors.Is(err, ErrCalendarWrite)
}

// Notice kinds, as carried by model.Notice.Kind.
const (
	NoticePermissionDenied = "permission_denied"
	NoticeNoCalendar       = "no_calendar"
	NoticeCalendarError    = "calendar_error"
	NoticeShareUnavailable = "share_unavailable"
	NoticeEmptyShareTarget = "empty_share_target"
	NoticeShareError       = "share_error"
)

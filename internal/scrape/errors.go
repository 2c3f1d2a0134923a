package scrape

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrBotProtected marks a source that refused us (403/406/429 or a
	// blocking message). The run continues without that manufacturer.
	ErrBotProtected = errors.New("bot protection")
	// ErrSourceFailed marks any other retrieval failure. It aborts the run.
	ErrSourceFailed = errors.New("source failed")
)

var botStatuses = map[int]bool{
	http.StatusForbidden:       true,
	http.StatusNotAcceptable:   true,
	http.StatusTooManyRequests: true,
}

var botMarkers = []string{
	"forbidden",
	"not acceptable",
	"too many requests",
	"rate limit",
	"blocked",
}

// SourceError describes a failed fetch for one manufacturer.
type SourceError struct {
	Manufacturer string
	URL          string
	Status       int
	Err          error
}

func (e *SourceError) Error() string {
	var b strings.Builder
	b.WriteString(e.Manufacturer)
	if e.URL != "" {
		b.WriteString(" " + e.URL)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *SourceError) Unwrap() error { return e.Err }

// Is classifies the error as ErrBotProtected or ErrSourceFailed.
func (e *SourceError) Is(target error) bool {
	switch target {
	case ErrBotProtected:
		return e.botProtected()
	case ErrSourceFailed:
		return !e.botProtected()
	}
	return false
}

func (e *SourceError) botProtected() bool {
	if botStatuses[e.Status] {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, ErrBotProtected) {
		return true
	}
	return e.Err != nil && looksBlocked(e.Err.Error())
}

func looksBlocked(msg string) bool {
	msg = strings.ToLower(msg)
	for _, m := range botMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

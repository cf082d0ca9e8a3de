package descriptor

import (
	"net/http"
	"strings"
	"time"
)

// Envelope carries the conditional-request validators of a syncable record.
type Envelope struct {
	Validator    string `json:"$etag,omitempty"`
	LastSyncedAt string `json:"$timestamp,omitempty"`
}

const (
	validatorKey = "$etag"
	timestampKey = "$timestamp"
)

// CacheEnvelope returns e itself so records embedding Envelope expose it.
func (e *Envelope) CacheEnvelope() *Envelope {
	return e
}

// SyncedAt parses LastSyncedAt.
func (e *Envelope) SyncedAt() (time.Time, bool) {
	if e == nil || strings.TrimSpace(e.LastSyncedAt) == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(e.LastSyncedAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Stamp records t as the last successful sync.
func (e *Envelope) Stamp(t time.Time) {
	e.LastSyncedAt = FormatTime(t)
}

// Reset clears both validators.
func (e *Envelope) Reset() {
	*e = Envelope{}
}

// FormatTime renders t in the HTTP date format used for every stored timestamp.
func FormatTime(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

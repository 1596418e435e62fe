package migration

import (
	"encoding/json"
	"strings"
	"time"
)

// legacyEntry is one normalized element of emails.json. The file historically
// held bare email strings; newer exports wrapped them in objects with an
// optional capture timestamp and client IP.
type legacyEntry struct {
	Email     string `json:"email"`
	Timestamp string `json:"timestamp,omitempty"`
	IP        string `json:"ip,omitempty"`
}

// originalTimestamp returns the raw timestamp string for provenance metadata,
// or nil when the entry carried none.
func (e legacyEntry) originalTimestamp() any {
	if e.Timestamp == "" {
		return nil
	}
	return e.Timestamp
}

// parseEntry normalizes a raw array element into a legacyEntry. A bare string
// becomes {email: s}. Elements that are neither a string nor an object with a
// usable email-like value report ok=false and are skipped by the caller.
func parseEntry(raw json.RawMessage) (legacyEntry, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		entry := legacyEntry{Email: s}
		return entry, usableEmail(s)
	}

	var entry legacyEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return legacyEntry{}, false
	}
	return entry, usableEmail(entry.Email)
}

// usableEmail is the migration job's lenient filter: anything containing an
// "@" is worth carrying over. Full syntax validation happens at the API, not
// here — the legacy list predates validation and dropping near-miss addresses
// silently would lose data.
func usableEmail(s string) bool {
	return s != "" && strings.Contains(s, "@")
}

// timestampLayouts are tried in order when parsing a legacy entry timestamp.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTimestamp converts a legacy timestamp string, falling back to the
// migration run time when the value is absent or unparseable.
func parseTimestamp(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return fallback
}

// Package migration backfills the legacy emails.json flat file into the
// subscribers table. The job is idempotent: a completion marker on disk plus
// an emptiness check on the store decide whether a run does any work, so it
// is safe to invoke on every startup.
package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/storyforge-cloud/email-capture-service/internal/domain"
	"github.com/storyforge-cloud/email-capture-service/internal/store"
)

const (
	legacyFileName = "emails.json"
	markerSuffix   = ".migrated"
	sourceTag      = "emails.json"
)

// Report summarizes one completed run. It is also the on-disk marker format.
type Report struct {
	MigratedAt time.Time `json:"migratedAt"`
	Total      int       `json:"total"`
	Migrated   int       `json:"migrated"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
}

// Migrator moves legacy email entries into the subscriber store exactly once.
type Migrator struct {
	store      store.SubscriberStore
	sourcePath string
	markerPath string
	logger     *slog.Logger
	now        func() time.Time
}

func New(s store.SubscriberStore, dataDir string, logger *slog.Logger) *Migrator {
	sourcePath := filepath.Join(dataDir, legacyFileName)
	return &Migrator{
		store:      s,
		sourcePath: sourcePath,
		markerPath: sourcePath + markerSuffix,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes the backfill. It returns a nil Report when the marker shows a
// previous run already completed and the store holds data. A non-nil error
// means the run aborted and should be retried by re-invoking the job.
//
// Decision table:
//
//	marker absent              -> migrate
//	marker present, store full -> skip
//	marker present, store empty -> migrate (marker without data is untrusted)
func (m *Migrator) Run(ctx context.Context) (*Report, error) {
	count, err := m.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting existing subscribers: %w", err)
	}

	markerExists := fileExists(m.markerPath)
	if markerExists && count > 0 {
		m.logger.Info("legacy emails already migrated",
			"marker", m.markerPath,
			"existing_subscribers", count,
		)
		return nil, nil
	}
	if markerExists && count == 0 {
		m.logger.Warn("migration marker present but store is empty, re-running migration")
	}

	if !fileExists(m.sourcePath) {
		m.logger.Info("no legacy email file found, nothing to migrate", "path", m.sourcePath)
		report := &Report{MigratedAt: m.now().UTC()}
		if err := m.writeMarker(report); err != nil {
			return nil, err
		}
		return report, nil
	}

	entries, err := m.readEntries()
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		m.logger.Info("legacy email file is empty, nothing to migrate", "path", m.sourcePath)
		report := &Report{MigratedAt: m.now().UTC()}
		if err := m.writeMarker(report); err != nil {
			return nil, err
		}
		return report, nil
	}

	m.logger.Info("migrating legacy emails", "path", m.sourcePath, "entries", len(entries))

	runTime := m.now().UTC()
	report := &Report{Total: len(entries)}

	for _, raw := range entries {
		entry, ok := parseEntry(raw)
		if !ok {
			m.logger.Warn("skipping invalid legacy entry", "entry", string(raw))
			report.Skipped++
			continue
		}

		sub := domain.NewSubscriber{
			Email:        entry.Email,
			SubscribedAt: parseTimestamp(entry.Timestamp, runTime),
			Metadata: map[string]any{
				"migratedFrom":      sourceTag,
				"migratedAt":        runTime.Format(time.RFC3339),
				"originalTimestamp": entry.originalTimestamp(),
			},
		}
		if entry.IP != "" {
			ip := entry.IP
			sub.IPAddress = &ip
		}

		_, err := m.store.Create(ctx, sub)
		switch {
		case err == nil:
			m.logger.Info("migrated legacy email", "email", entry.Email)
			report.Migrated++
		case errors.Is(err, store.ErrDuplicateEmail):
			m.logger.Info("legacy email already exists", "email", entry.Email)
			report.Skipped++
		default:
			m.logger.Error("failed to migrate legacy email", "email", entry.Email, "error", err)
			report.Failed++
		}
	}

	report.MigratedAt = m.now().UTC()
	if err := m.writeMarker(report); err != nil {
		return nil, err
	}

	m.logger.Info("migration complete",
		"total", report.Total,
		"migrated", report.Migrated,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)

	return report, nil
}

// readEntries loads the legacy file as a raw JSON array. Individual elements
// are normalized later so one malformed element never aborts the batch.
func (m *Migrator) readEntries() ([]json.RawMessage, error) {
	content, err := os.ReadFile(m.sourcePath)
	if err != nil {
		return nil, fmt.Errorf("reading legacy email file: %w", err)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(content, &entries); err != nil {
		return nil, fmt.Errorf("parsing legacy email file: %w", err)
	}
	return entries, nil
}

func (m *Migrator) writeMarker(report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding migration marker: %w", err)
	}
	if err := os.WriteFile(m.markerPath, data, 0o644); err != nil {
		return fmt.Errorf("writing migration marker: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

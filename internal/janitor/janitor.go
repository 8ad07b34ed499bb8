// Package janitor removes chat data nothing refers to anymore: uploads that
// were never attached to a message and rooms left without participants.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/brandchat-server/internal/core"
	"github.com/vovakirdan/brandchat-server/internal/store"
)

// Store is the persistence the janitor sweeps.
type Store interface {
	DeleteDanglingAttachments(ctx context.Context, olderThan time.Time) ([]store.Attachment, error)
	DeleteEmptyRooms(ctx context.Context) (int64, []store.Attachment, error)
}

// Report summarizes one sweep.
type Report struct {
	Attachments int
	Rooms       int64
	Files       int
}

// Janitor sweeps dangling attachments and empty rooms.
type Janitor struct {
	store    Store
	files    core.FileRemover
	lifetime time.Duration
	now      func() time.Time
	log      *zerolog.Logger
}

// New creates a janitor. Attachments not bound to a message for longer than
// lifetime are considered dangling.
func New(st Store, files core.FileRemover, lifetime time.Duration, logger *zerolog.Logger) *Janitor {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "janitor").Logger()
	return &Janitor{store: st, files: files, lifetime: lifetime, now: time.Now, log: &l}
}

// Sweep runs one cleanup pass. Database rows are removed first; files that
// cannot be removed afterwards are reported but do not undo the pass.
func (j *Janitor) Sweep(ctx context.Context) (Report, error) {
	var report Report

	dangling, err := j.store.DeleteDanglingAttachments(ctx, j.now().Add(-j.lifetime))
	if err != nil {
		return report, fmt.Errorf("delete dangling attachments: %w", err)
	}
	report.Attachments = len(dangling)

	rooms, orphaned, err := j.store.DeleteEmptyRooms(ctx)
	if err != nil {
		return report, fmt.Errorf("delete empty rooms: %w", err)
	}
	report.Rooms = rooms

	files := make([]string, 0, len(dangling)+len(orphaned))
	for _, a := range append(dangling, orphaned...) {
		files = append(files, a.File)
	}
	report.Files = len(files)

	var fileErr error
	if j.files != nil && len(files) > 0 {
		fileErr = j.files.Remove(ctx, files...)
	}

	j.log.Info().
		Int("attachments", report.Attachments).
		Int64("rooms", report.Rooms).
		Int("files", report.Files).
		Msg("sweep finished")

	if fileErr != nil {
		return report, fmt.Errorf("remove files: %w", fileErr)
	}
	return report, nil
}

// Run sweeps every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := j.Sweep(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				j.log.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

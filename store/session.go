package store

import (
	"context"
	"fmt"

	"gifcompress/models"
)

// ListBySession returns every job recorded for a session, newest first.
func (s *Store) ListBySession(ctx context.Context, sessionID string) ([]models.Job, error) {
	jobs, _, err := s.List(ctx, models.ListFilters{SessionID: sessionID, AllStatus: true, Limit: 10000})
	if err != nil {
		return nil, fmt.Errorf("list jobs by session: %w", err)
	}
	return jobs, nil
}

// NonTerminalForSession returns a session's jobs still in uploading or
// queued state, the set the client garbage-collects on reconnect.
func (s *Store) NonTerminalForSession(ctx context.Context, sessionID string) ([]models.Job, error) {
	jobs, _, err := s.List(ctx, models.ListFilters{
		SessionID: sessionID,
		Status:    []models.Status{models.StatusUploading, models.StatusQueued},
	})
	if err != nil {
		return nil, fmt.Errorf("list non-terminal session jobs: %w", err)
	}
	return jobs, nil
}

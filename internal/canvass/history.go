package canvass

import (
	"context"
	"errors"
	"time"

	"github.com/evcraddock/canvasser/internal/store"
)

// ErrNoHistory means the configured store keeps only the latest snapshot.
var ErrNoHistory = errors.New("store keeps no history")

// SavedState summarizes one snapshot from the store's history.
type SavedState struct {
	SavedAt     time.Time `json:"savedAt"`
	Version     int       `json:"version"`
	Properties  int       `json:"properties"`
	Territories int       `json:"territories"`
	Routes      int       `json:"routes"`
}

// History lists up to limit recent saves, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]SavedState, error) {
	h, ok := s.store.(store.Historian)
	if !ok {
		return nil, ErrNoHistory
	}
	snaps, err := h.History(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]SavedState, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, SavedState{
			SavedAt:     snap.SavedAt,
			Version:     snap.Version,
			Properties:  len(snap.Properties),
			Territories: len(snap.Territories),
			Routes:      len(snap.Routes),
		})
	}
	return out, nil
}

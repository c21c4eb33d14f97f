package services

import (
	"context"
	"sync"

	"github.com/studypulse/arena-service/internal/models"
	"github.com/studypulse/arena-service/internal/realtime"
)

// ArenaSnapshot is a freshly derived view of one session, pushed to watchers
// whenever any underlying row changes.
type ArenaSnapshot struct {
	Session     *models.ArenaSession       `json:"session"`
	Leaderboard []*models.ArenaParticipant `json:"leaderboard"`
}

// Watch streams session snapshots. Every change event triggers a full
// re-fetch of session and leaderboard from the store; the change payload
// itself is only a wake-up signal, never patched into local state. Events
// arriving out of order therefore cannot corrupt the view.
func (s *arenaService) Watch(ctx context.Context, sessionID string) (<-chan ArenaSnapshot, func(), error) {
	if _, err := s.Get(ctx, sessionID); err != nil {
		return nil, nil, err
	}

	sessionCh, cancelSession, err := s.hub.Subscribe(ctx, "arena_sessions", realtime.Filter{RowID: sessionID})
	if err != nil {
		return nil, nil, err
	}
	participantCh, cancelParticipants, err := s.hub.Subscribe(ctx, "arena_participants", realtime.Filter{Scope: sessionID})
	if err != nil {
		cancelSession()
		return nil, nil, err
	}
	questionCh, cancelQuestions, err := s.hub.Subscribe(ctx, "arena_questions", realtime.Filter{Scope: sessionID})
	if err != nil {
		cancelSession()
		cancelParticipants()
		return nil, nil, err
	}

	out := make(chan ArenaSnapshot, 8)
	done := make(chan struct{})
	var once sync.Once
	// Idempotent, like the hub-level cancels it wraps.
	cancel := func() {
		once.Do(func() {
			cancelSession()
			cancelParticipants()
			cancelQuestions()
			close(done)
		})
	}

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case _, ok := <-sessionCh:
				if !ok {
					return
				}
			case _, ok := <-participantCh:
				if !ok {
					return
				}
			case _, ok := <-questionCh:
				if !ok {
					return
				}
			}

			snapshot, err := s.deriveSnapshot(ctx, sessionID)
			if err != nil {
				s.logger.Warn("Failed to derive session snapshot",
					"session_id", sessionID,
					"error", err)
				continue
			}

			select {
			case out <- *snapshot:
			default:
				// Watcher is not keeping up; drop this snapshot. The next
				// change will deliver a fresher one anyway.
			}
		}
	}()

	return out, cancel, nil
}

func (s *arenaService) deriveSnapshot(ctx context.Context, sessionID string) (*ArenaSnapshot, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	leaderboard, err := s.Leaderboard(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &ArenaSnapshot{Session: session, Leaderboard: leaderboard}, nil
}

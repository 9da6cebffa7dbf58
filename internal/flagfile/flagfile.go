// Package flagfile manages the durable marker files governor shares with the
// training process. A flag is level-triggered: its existence is the signal, the
// timestamp body is informational only and never parsed by either side.
package flagfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store creates, removes, and tests flag files under one control directory.
type Store struct {
	pausePath    string
	gameModePath string
}

// NewStore builds a store for the two governor flags.
func NewStore(pausePath, gameModePath string) *Store {
	return &Store{pausePath: pausePath, gameModePath: gameModePath}
}

// PausePath returns the pause flag location.
func (s *Store) PausePath() string { return s.pausePath }

// GameModePath returns the game-mode flag location.
func (s *Store) GameModePath() string { return s.gameModePath }

// SetPause creates or removes the training pause flag.
func (s *Store) SetPause(on bool) error {
	return set(s.pausePath, on)
}

// SetGameMode creates or removes the daemon's game-mode marker.
func (s *Store) SetGameMode(on bool) error {
	return set(s.gameModePath, on)
}

// PausePresent reports whether the pause flag exists.
func (s *Store) PausePresent() (bool, error) {
	return present(s.pausePath)
}

// GameModePresent reports whether the game-mode marker exists.
func (s *Store) GameModePresent() (bool, error) {
	return present(s.gameModePath)
}

// set is idempotent in both directions: creating an existing flag rewrites its
// timestamp, removing an absent flag is a no-op.
func set(path string, on bool) error {
	if path == "" {
		return errors.New("flag path is empty")
	}
	if on {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("ensure flag directory: %w", err)
		}
		body := time.Now().UTC().Format(time.RFC3339) + "\n"
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return fmt.Errorf("write flag %s: %w", filepath.Base(path), err)
		}
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove flag %s: %w", filepath.Base(path), err)
	}
	return nil
}

func present(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat flag %s: %w", filepath.Base(path), err)
	}
	return !info.IsDir(), nil
}

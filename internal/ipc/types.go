package ipc

import "time"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and loop status information.
type StatusResponse struct {
	Running        bool      `json:"running"`
	PID            int       `json:"pid"`
	RunID          string    `json:"run_id"`
	Mode           string    `json:"mode"`
	GameDetected   bool      `json:"game_detected"`
	TrainDetected  bool      `json:"train_detected"`
	Tick           uint64    `json:"tick"`
	Pending        []string  `json:"pending,omitempty"`
	PausePresent   bool      `json:"pause_present"`
	StartedAt      time.Time `json:"started_at"`
	LastTransition time.Time `json:"last_transition,omitempty"`
	LastTrigger    string    `json:"last_trigger,omitempty"`
	LockPath       string    `json:"lock_path"`
	HistoryDBPath  string    `json:"history_db_path,omitempty"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// PauseRequest sets or clears the pause flag override.
type PauseRequest struct {
	On bool `json:"on"`
}

// PauseResponse reports the resulting flag state.
type PauseResponse struct {
	Paused bool `json:"paused"`
}

// HistoryRequest fetches recent transitions.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// Transition is one committed mode change.
type Transition struct {
	OccurredAt time.Time         `json:"occurred_at"`
	From       string            `json:"from"`
	To         string            `json:"to"`
	Trigger    string            `json:"trigger"`
	Outcomes   map[string]string `json:"outcomes"`
}

// HistoryResponse contains recent transitions, newest first.
type HistoryResponse struct {
	Transitions []Transition `json:"transitions"`
}

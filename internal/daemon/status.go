package daemon

import (
	"os"
	"strconv"
	"strings"
	"time"

	"jaybrain/internal/store"
)

// StatusReport is the get_daemon_status payload.
type StatusReport struct {
	Status        string    `json:"status"`
	PID           int       `json:"pid,omitempty"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	LastHeartbeat time.Time `json:"last_heartbeat,omitempty"`
	Modules       []string  `json:"modules,omitempty"`
	ProcessAlive  bool      `json:"process_alive"`
	LockPID       int       `json:"lock_pid,omitempty"`
}

// Status reports the daemon's state from daemon_state plus a liveness probe.
// A row that claims "running" with a dead PID reports stopped.
func Status(s *store.Store, lockPath string) StatusReport {
	report := StatusReport{Status: "stopped"}

	if raw, err := os.ReadFile(lockPath); err == nil {
		if pid, perr := strconv.Atoi(strings.TrimSpace(string(raw))); perr == nil {
			report.LockPID = pid
		}
	}

	state, err := s.GetDaemonState()
	if err != nil {
		return report
	}

	report.PID = state.PID
	report.StartedAt = state.StartedAt
	report.LastHeartbeat = state.LastHeartbeat
	report.Modules = state.Modules
	report.ProcessAlive = processAlive(state.PID)

	if state.Status == "running" && report.ProcessAlive {
		report.Status = "running"
	}
	return report
}

package status

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Phase is the workflow phase as it appears in the published document.
type Phase string

const (
	PhaseStarting             Phase = "STARTING"
	PhaseCheckingProvisioning Phase = "CHECKING_PROVISIONING"
	PhaseAlreadyProvisioned   Phase = "ALREADY_PROVISIONED"
	PhaseCheckingConnectivity Phase = "CHECKING_CONNECTIVITY"
	PhaseNoConnectivity       Phase = "NO_CONNECTIVITY"
	PhaseReadingIdentity      Phase = "READING_DATABASE"
	PhaseGeneratingConfig     Phase = "GENERATING_CONFIG"
	PhaseInstalling           Phase = "PROVISIONING"
	PhaseCompleted            Phase = "COMPLETED"
	PhaseError                Phase = "ERROR"
)

// ProgressUnset asks Update to substitute the phase's default percentage.
const ProgressUnset = -1

var defaultMessages = map[Phase]string{
	PhaseStarting:             "Service is starting",
	PhaseCheckingProvisioning: "Checking if Greengrass is already provisioned",
	PhaseAlreadyProvisioned:   "Greengrass is already provisioned",
	PhaseCheckingConnectivity: "Checking internet connectivity",
	PhaseNoConnectivity:       "No internet connectivity available",
	PhaseReadingIdentity:      "Reading device identity from the store",
	PhaseGeneratingConfig:     "Generating Greengrass configuration",
	PhaseInstalling:           "Provisioning Greengrass device",
	PhaseCompleted:            "Provisioning completed successfully",
	PhaseError:                "An error occurred during provisioning",
}

var defaultProgress = map[Phase]int{
	PhaseStarting:             5,
	PhaseCheckingProvisioning: 10,
	PhaseAlreadyProvisioned:   100,
	PhaseCheckingConnectivity: 20,
	PhaseNoConnectivity:       20,
	PhaseReadingIdentity:      40,
	PhaseGeneratingConfig:     60,
	PhaseInstalling:           80,
	PhaseCompleted:            100,
}

// WorkflowStatus is the single shared mutable workflow state. It is owned
// exclusively by the Publisher and mutated only through Update/ReportError.
type WorkflowStatus struct {
	Phase        Phase
	Message      string
	Progress     int
	Timestamp    time.Time
	ErrorDetails string
}

// statusDocument is the external JSON contract consumed by monitors.
type statusDocument struct {
	Status       Phase  `json:"status"`
	Message      string `json:"message"`
	Timestamp    string `json:"timestamp"`
	Progress     int    `json:"progress_percentage"`
	ErrorDetails string `json:"error_details,omitempty"`
}

// Publisher is a thread-safe, crash-consistent publisher of workflow state.
type Publisher struct {
	path string
	log  *slog.Logger

	mu      sync.Mutex
	current WorkflowStatus
}

// New creates a publisher writing to path and immediately publishes the
// initial Starting status.
func New(path string, log *slog.Logger) (*Publisher, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create status directory: %w", err)
	}

	p := &Publisher{
		path: path,
		log:  log,
		current: WorkflowStatus{
			Phase:     PhaseStarting,
			Message:   defaultMessages[PhaseStarting],
			Progress:  0,
			Timestamp: time.Now(),
		},
	}
	if err := p.publishLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

// Update records a phase transition and publishes it. An empty message is
// replaced by the phase's default message; a negative progress is replaced
// by the phase's default percentage. Progress is clamped into [0,100].
// Any non-error update clears previously recorded error details.
func (p *Publisher) Update(phase Phase, message string, progress int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current.Phase = phase
	p.current.Timestamp = time.Now()

	if message != "" {
		p.current.Message = message
	} else {
		p.current.Message = defaultMessages[phase]
	}

	if progress >= 0 {
		p.current.Progress = clamp(progress)
	} else if phase != PhaseError {
		p.current.Progress = defaultProgress[phase]
	}
	// The error phase keeps whatever progress was last reached; it tells
	// monitors how far the run got before failing.

	if phase != PhaseError {
		p.current.ErrorDetails = ""
	}

	if err := p.publishLocked(); err != nil {
		p.log.Error("Failed to publish status", "err", err)
	}
	p.log.Info("Status updated",
		slog.String("phase", string(phase)),
		slog.String("message", p.current.Message),
		slog.Int("progress", p.current.Progress))
}

// ReportError records the error phase with details and publishes it. Empty
// details are not added to the published document.
func (p *Publisher) ReportError(message, details string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current.Phase = PhaseError
	if message != "" {
		p.current.Message = message
	} else {
		p.current.Message = defaultMessages[PhaseError]
	}
	p.current.ErrorDetails = details
	p.current.Timestamp = time.Now()

	if err := p.publishLocked(); err != nil {
		p.log.Error("Failed to publish error status", "err", err)
	}
	p.log.Error("Error reported",
		slog.String("message", p.current.Message),
		slog.String("details", details))
}

// Current returns a copy of the current workflow status.
func (p *Publisher) Current() WorkflowStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Path returns the externally visible status file location.
func (p *Publisher) Path() string {
	return p.path
}

// publishLocked serializes the current status and atomically replaces the
// status file. Callers must hold p.mu.
func (p *Publisher) publishLocked() error {
	doc := statusDocument{
		Status:       p.current.Phase,
		Message:      p.current.Message,
		Timestamp:    p.current.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		Progress:     p.current.Progress,
		ErrorDetails: p.current.ErrorDetails,
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write temporary status file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("failed to replace status file: %w", err)
	}
	// Rename preserves the temp file's mode, but the process umask may have
	// stripped group/other read bits on creation.
	if err := os.Chmod(p.path, 0644); err != nil {
		return fmt.Errorf("failed to set status file permissions: %w", err)
	}
	return nil
}

func clamp(progress int) int {
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}

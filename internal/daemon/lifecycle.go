package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
)

// Lifecycle manages the daemon pid file so the CLI can find, check, and
// stop a running instance.
type Lifecycle struct {
	dataDir string
	pidFile string
	logger  zerolog.Logger
}

// NewLifecycle binds the pid file to the data directory.
func NewLifecycle(dataDir string, logger zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		dataDir: dataDir,
		pidFile: filepath.Join(dataDir, "reverie.pid"),
		logger:  logger,
	}
}

// PIDFile returns the pid file path.
func (l *Lifecycle) PIDFile() string { return l.pidFile }

// Start creates the data directory and writes the pid file.
func (l *Lifecycle) Start() error {
	if err := os.MkdirAll(l.dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	pid := os.Getpid()
	if err := os.WriteFile(l.pidFile, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	l.logger.Info().Str("pid_file", l.pidFile).Int("pid", pid).Msg("Pid file written")
	return nil
}

// Stop removes the pid file.
func (l *Lifecycle) Stop() error {
	if err := os.Remove(l.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pid file: %w", err)
	}
	return nil
}

// PID reads the recorded process id.
func (l *Lifecycle) PID() (int, error) {
	data, err := os.ReadFile(l.pidFile)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid file: %w", err)
	}
	return pid, nil
}

// IsRunning reports whether the recorded process still exists.
func (l *Lifecycle) IsRunning() bool {
	pid, err := l.PID()
	if err != nil {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess always succeeds on Unix; signal 0 probes existence.
	return process.Signal(syscall.Signal(0)) == nil
}

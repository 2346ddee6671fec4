// Package profile loads the agent persona and keeps it fresh while the
// host runs. The persona feeds the actor directory and fact suppression.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Persona describes the agent identity.
type Persona struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Username string   `json:"username,omitempty"`
	Bio      []string `json:"bio"`
	Style    []string `json:"style,omitempty"`
	Topics   []string `json:"topics,omitempty"`
}

// KnowsFact reports whether a claim is already covered by the persona
// biography. Comparison is case-insensitive substring containment.
func (p Persona) KnowsFact(claim string) bool {
	needle := strings.ToLower(strings.TrimSpace(claim))
	if needle == "" {
		return false
	}
	for _, line := range p.Bio {
		if strings.Contains(strings.ToLower(line), needle) {
			return true
		}
	}
	return false
}

// Provider loads a persona file and reloads it on change.
type Provider struct {
	path    string
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	timer   *time.Timer

	mu      sync.RWMutex
	persona Persona
}

// NewProvider reads the persona file and starts watching it for changes.
func NewProvider(path string, logger zerolog.Logger) (*Provider, error) {
	p := &Provider{
		path:   path,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	if err := p.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create persona watcher: %w", err)
	}
	// Watch the directory: editors replace files on save, which drops
	// a watch added on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch persona file: %w", err)
	}
	p.watcher = watcher

	go p.run()

	logger.Info().Str("path", path).Str("name", p.Persona().Name).Msg("Persona loaded")
	return p, nil
}

// Persona returns the current persona snapshot.
func (p *Provider) Persona() Persona {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.persona
}

// Stop shuts down the watcher.
func (p *Provider) Stop() error {
	close(p.stopCh)
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}

func (p *Provider) reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("failed to read persona file: %w", err)
	}

	var persona Persona
	if err := json.Unmarshal(data, &persona); err != nil {
		return fmt.Errorf("failed to parse persona file: %w", err)
	}
	if persona.Name == "" {
		return fmt.Errorf("persona name is required")
	}

	p.mu.Lock()
	p.persona = persona
	p.mu.Unlock()
	return nil
}

func (p *Provider) run() {
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(p.path) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				p.scheduleReload()
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error().Err(err).Msg("Persona watcher error")
		case <-p.stopCh:
			return
		}
	}
}

// scheduleReload debounces bursts of write events from a single save.
func (p *Provider) scheduleReload() {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(200*time.Millisecond, func() {
		if err := p.reload(); err != nil {
			p.logger.Warn().Err(err).Msg("Failed to reload persona, keeping previous")
			return
		}
		p.logger.Info().Str("name", p.Persona().Name).Msg("Persona reloaded")
	})
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultWebsite is used whenever no usable target has been persisted.
const DefaultWebsite = "https://example.com"

// ErrEmptyTarget is returned when saving a target without an address.
var ErrEmptyTarget = errors.New("target website is required")

// Target is the persisted configuration: the address the browser shows.
type Target struct {
	Website string `json:"website"`
}

// Recorder receives event log messages.
type Recorder interface {
	Post(message string)
}

// LoadError describes why the persisted target could not be used.
// Load never returns it; it is recorded and the default is installed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load target config %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// SaveError reports that the target could not be written.
type SaveError struct {
	Path string
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("failed to save target config %s: %v", e.Path, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// TargetStore persists the target in a JSON file.
type TargetStore struct {
	path     string
	fallback Target
	recorder Recorder
	mu       sync.Mutex
}

// NewTargetStore creates a store at path. defaultWebsite replaces
// DefaultWebsite when non-empty.
func NewTargetStore(path, defaultWebsite string, recorder Recorder) *TargetStore {
	if strings.TrimSpace(defaultWebsite) == "" {
		defaultWebsite = DefaultWebsite
	}
	return &TargetStore{
		path:     path,
		fallback: Target{Website: defaultWebsite},
		recorder: recorder,
	}
}

// Load returns the persisted target.
//
// Load does not fail. When the file is missing, unreadable, malformed or
// holds an empty address, the problem is recorded once and the default target
// is written over whatever was there and returned.
func (s *TargetStore) Load() Target {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.read()
	if err == nil {
		return target
	}

	s.record((&LoadError{Path: s.path, Err: err}).Error())

	if err := s.write(s.fallback); err != nil {
		s.record(fmt.Sprintf("failed to install default target config: %v", err))
	}
	return s.fallback
}

func (s *TargetStore) read() (Target, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Target{}, err
	}

	var target Target
	if err := json.Unmarshal(data, &target); err != nil {
		return Target{}, fmt.Errorf("failed to decode config file: %w", err)
	}

	target.Website = strings.TrimSpace(target.Website)
	if target.Website == "" {
		return Target{}, ErrEmptyTarget
	}
	return target, nil
}

// Save writes target, replacing any previous value.
func (s *TargetStore) Save(target Target) error {
	if strings.TrimSpace(target.Website) == "" {
		return ErrEmptyTarget
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(target); err != nil {
		return &SaveError{Path: s.path, Err: err}
	}
	return nil
}

// write stores target through a temp file and rename so readers never see
// a partial record.
func (s *TargetStore) write(target Target) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(target, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, append(data, '\n'), 0600); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp config file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (s *TargetStore) record(message string) {
	if s.recorder != nil {
		s.recorder.Post(message)
	}
}

// Path returns the file path of the store.
func (s *TargetStore) Path() string {
	return s.path
}

// Default returns the target installed when nothing usable is persisted.
func (s *TargetStore) Default() Target {
	return s.fallback
}

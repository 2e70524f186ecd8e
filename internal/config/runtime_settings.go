package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MimeLyc/subtitle-editor/pkg/file"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const DefaultTimeoutMinutes = 10

// RuntimeSettings are the settings an administrator may change while the
// server is running. Consumers read them per request.
type RuntimeSettings struct {
	TranslationAPIURL string `json:"translation_api_url" yaml:"translation_api_url"`
	TimeoutMinutes    int    `json:"timeout_minutes" yaml:"timeout_minutes"`
	Languages         string `json:"languages" yaml:"languages"`
}

func (s RuntimeSettings) Validate() error {
	if strings.TrimSpace(s.TranslationAPIURL) == "" {
		return fmt.Errorf("translation_api_url is required")
	}
	u, err := url.Parse(s.TranslationAPIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid translation_api_url: %q", s.TranslationAPIURL)
	}
	if s.TimeoutMinutes < 0 {
		return fmt.Errorf("timeout_minutes must not be negative")
	}
	for _, code := range SplitList(s.Languages) {
		if _, err := language.Parse(code); err != nil {
			return fmt.Errorf("invalid language %q: %w", code, err)
		}
	}
	return nil
}

// Timeout is the pending job timeout, zero minutes falls back to the default.
func (s RuntimeSettings) Timeout() time.Duration {
	minutes := s.TimeoutMinutes
	if minutes <= 0 {
		minutes = DefaultTimeoutMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// AllowedLanguages returns the allow-list, nil means every language is allowed.
func (s RuntimeSettings) AllowedLanguages() []string {
	list := SplitList(s.Languages)
	if len(list) == 0 {
		return nil
	}
	return list
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if isYAML(path) {
		err = yaml.Unmarshal(data, &settings)
	} else {
		err = json.Unmarshal(data, &settings)
	}
	if err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	return settings, nil
}

func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	var (
		content []byte
		err     error
	)
	if isYAML(path) {
		content, err = yaml.Marshal(settings)
	} else {
		content, err = json.MarshalIndent(settings, "", "  ")
		content = append(content, '\n')
	}
	if err != nil {
		return err
	}

	return file.WriteAtomic(path, content, 0o600)
}

type RuntimeSettingsStore struct {
	path string

	mu      sync.RWMutex
	current RuntimeSettings
}

// OpenRuntimeSettingsStore loads the settings file when present, otherwise it
// starts from fallback and writes it out.
func OpenRuntimeSettingsStore(path string, fallback RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	initial := fallback
	if loaded, err := LoadRuntimeSettingsFile(path); err == nil {
		initial = loaded
	} else if !os.IsNotExist(err) {
		return nil, err
	} else if err := WriteRuntimeSettingsFile(path, fallback); err != nil {
		return nil, err
	}
	return NewRuntimeSettingsStore(path, initial)
}

func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeSettingsStore{
		path:    path,
		current: initial,
	}, nil
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	if err := next.Validate(); err != nil {
		return RuntimeSettings{}, err
	}
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next, nil
}

// StaticSettings serves fixed settings, used by tests and embedded callers.
type StaticSettings RuntimeSettings

func (s StaticSettings) GetRuntimeSettings() (RuntimeSettings, error) {
	return RuntimeSettings(s), nil
}

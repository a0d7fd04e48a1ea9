package config

import (
	"path/filepath"
	"strings"

	apperrors "bootstrap-core/internal/errors"
)

// Slot names the file that holds one persisted configuration value.
type Slot struct {
	path string
}

// NewSlot returns a slot backed by path.
func NewSlot(path string) (Slot, error) {
	if strings.TrimSpace(path) == "" {
		return Slot{}, apperrors.InvalidArgument("config slot path is required").
			WithOperation("config.NewSlot").
			Build()
	}
	return Slot{path: filepath.Clean(path)}, nil
}

// MustSlot is like NewSlot but panics on an empty path.
func MustSlot(path string) Slot {
	s, err := NewSlot(path)
	if err != nil {
		panic(err)
	}
	return s
}

// Path returns the backing file path.
func (s Slot) Path() string { return s.path }

// Dir returns the directory containing the backing file.
func (s Slot) Dir() string { return filepath.Dir(s.path) }

func (s Slot) String() string { return s.path }

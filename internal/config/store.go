package config

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	apperrors "bootstrap-core/internal/errors"
	"bootstrap-core/internal/infrastructure/observability"
)

const tracerName = "bootstrap-core/config"

// Provider loads and persists a typed configuration value.
type Provider[T any] interface {
	Load(ctx context.Context) (T, error)
	Save(ctx context.Context, value T) error
}

// Store is the file-backed Provider for one slot. Values are read on every Load;
// nothing is cached between calls.
type Store[T any] struct {
	slot      Slot
	codec     Codec
	validate  *validator.Validate
	logger    *zap.Logger
	collector *observability.Collector
	fileMode  os.FileMode
}

var _ Provider[struct{}] = (*Store[struct{}])(nil)

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

type storeOptions struct {
	codec     Codec
	validate  *validator.Validate
	logger    *zap.Logger
	collector *observability.Collector
	fileMode  os.FileMode
}

// WithValidation checks loaded and saved values against their `validate` struct tags.
func WithValidation() StoreOption {
	return func(o *storeOptions) {
		o.validate = validator.New()
	}
}

// WithValidator is like WithValidation but uses a caller-configured validator.
func WithValidator(v *validator.Validate) StoreOption {
	return func(o *storeOptions) {
		o.validate = v
	}
}

// WithCodec overrides the codec picked from the slot's extension.
func WithCodec(c Codec) StoreOption {
	return func(o *storeOptions) {
		o.codec = c
	}
}

// WithLogger sets the store's logger.
func WithLogger(logger *zap.Logger) StoreOption {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

// WithCollector records load and save outcomes in c.
func WithCollector(c *observability.Collector) StoreOption {
	return func(o *storeOptions) {
		o.collector = c
	}
}

// WithFileMode sets the permissions of written files. Defaults to 0644.
func WithFileMode(mode os.FileMode) StoreOption {
	return func(o *storeOptions) {
		o.fileMode = mode
	}
}

// NewStore creates a store for slot.
func NewStore[T any](slot Slot, opts ...StoreOption) *Store[T] {
	o := storeOptions{fileMode: 0o644}
	for _, opt := range opts {
		opt(&o)
	}
	if o.codec == nil {
		o.codec = CodecFor(slot.Path())
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	return &Store[T]{
		slot:      slot,
		codec:     o.codec,
		validate:  o.validate,
		logger:    o.logger.With(zap.String("slot", slot.Path())),
		collector: o.collector,
		fileMode:  o.fileMode,
	}
}

// NewFileProvider returns a validating store for the slot named by settings,
// writing files with settings.ConfigFileMode when set.
func NewFileProvider[T any](s *Settings, opts ...StoreOption) (*Store[T], error) {
	if s == nil {
		return nil, apperrors.InvalidArgument("settings are required").
			WithOperation("config.NewFileProvider").
			Build()
	}
	slot, err := NewSlot(s.ConfigPath)
	if err != nil {
		return nil, err
	}
	base := []StoreOption{WithValidation()}
	if s.ConfigFileMode != 0 {
		base = append(base, WithFileMode(s.ConfigFileMode))
	}
	return NewStore[T](slot, append(base, opts...)...), nil
}

// Slot returns the slot the store reads and writes.
func (s *Store[T]) Slot() Slot { return s.slot }

// Load reads the slot. A slot whose file does not exist, or holds only whitespace,
// yields the zero value of T.
func (s *Store[T]) Load(ctx context.Context) (value T, err error) {
	start := time.Now()
	_, span := observability.StartSpan(ctx, tracerName, "config.Load",
		attribute.String("config.slot", s.slot.Path()),
		attribute.String("config.codec", s.codec.Name()),
	)
	defer func() {
		observability.EndSpan(span, err)
		s.collector.RecordConfigOperation("load", time.Since(start), err)
	}()

	data, err := os.ReadFile(s.slot.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("Config slot absent, using zero value")
			return value, nil
		}
		return value, apperrors.ConfigCorrupt("failed to read config slot").
			WithOperation("config.Load").
			WithResource(s.slot.Path()).
			WithCause(err).
			Build()
	}

	if len(bytes.TrimSpace(data)) == 0 {
		s.logger.Debug("Config slot empty, using zero value")
		return value, nil
	}

	if err := s.codec.Decode(data, &value); err != nil {
		var zero T
		s.logger.Warn("Config slot is malformed", zap.Error(err))
		return zero, apperrors.ConfigCorrupt("failed to parse config slot").
			WithOperation("config.Load").
			WithResource(s.slot.Path()).
			WithDetailsf("codec %s", s.codec.Name()).
			WithCause(err).
			Build()
	}

	if err := s.check(value); err != nil {
		var zero T
		return zero, apperrors.ConfigCorrupt("config slot failed validation").
			WithOperation("config.Load").
			WithResource(s.slot.Path()).
			WithCause(err).
			Build()
	}

	s.logger.Debug("Config slot loaded", zap.Int("bytes", len(data)))
	return value, nil
}

// Save writes value to the slot, creating the parent directory when needed. The
// file is replaced atomically so readers never see a partial write.
func (s *Store[T]) Save(ctx context.Context, value T) (err error) {
	start := time.Now()
	_, span := observability.StartSpan(ctx, tracerName, "config.Save",
		attribute.String("config.slot", s.slot.Path()),
		attribute.String("config.codec", s.codec.Name()),
	)
	defer func() {
		observability.EndSpan(span, err)
		s.collector.RecordConfigOperation("save", time.Since(start), err)
	}()

	if err := s.check(value); err != nil {
		return apperrors.InvalidArgument("config value failed validation").
			WithOperation("config.Save").
			WithResource(s.slot.Path()).
			WithCause(err).
			Build()
	}

	data, err := s.codec.Encode(value)
	if err != nil {
		return s.writeFailure("failed to encode config value", err)
	}

	if err := os.MkdirAll(s.slot.Dir(), 0o755); err != nil {
		return s.writeFailure("failed to create config directory", err)
	}

	if err := writeFileAtomic(s.slot.Path(), data, s.fileMode); err != nil {
		s.logger.Error("Failed to write config slot", zap.Error(err))
		return s.writeFailure("failed to write config slot", err)
	}

	s.logger.Debug("Config slot saved", zap.Int("bytes", len(data)))
	return nil
}

func (s *Store[T]) writeFailure(msg string, cause error) error {
	return apperrors.ConfigWriteFailure(msg).
		WithOperation("config.Save").
		WithResource(s.slot.Path()).
		WithCause(cause).
		Build()
}

// check validates struct values when validation is enabled. Other kinds pass.
func (s *Store[T]) check(value T) error {
	if s.validate == nil {
		return nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	return s.validate.Struct(value)
}

// writeFileAtomic writes data to a temp file beside path, syncs it and renames it
// over path. The temp file is removed on any failure.
func writeFileAtomic(path string, data []byte, mode os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(mode); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

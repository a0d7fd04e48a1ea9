package observability

import (
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a zap logger configured for the environment. Production
// emits sampled JSON; anything else emits colored console output.
func NewLogger(environment, level string) (*zap.Logger, error) {
	var config zap.Config

	if environment == "production" {
		config = zap.NewProductionConfig()
		config.Sampling = &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		}
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	config.Level = zap.NewAtomicLevelAt(lvl)

	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	return config.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
	)
}

// LoggerFactory hands out loggers derived from one root logger.
type LoggerFactory interface {
	// Logger returns the root logger.
	Logger() *zap.Logger
	// Named returns a child logger with the given name segment.
	Named(name string) *zap.Logger
	// For returns a child logger named after the consumer type.
	For(t reflect.Type) *zap.Logger
}

type zapLoggerFactory struct {
	root *zap.Logger
}

// NewLoggerFactory creates a factory over root. A nil root yields no-op loggers.
func NewLoggerFactory(root *zap.Logger) LoggerFactory {
	if root == nil {
		root = zap.NewNop()
	}
	return &zapLoggerFactory{root: root}
}

func (f *zapLoggerFactory) Logger() *zap.Logger {
	return f.root
}

func (f *zapLoggerFactory) Named(name string) *zap.Logger {
	return f.root.Named(name)
}

func (f *zapLoggerFactory) For(t reflect.Type) *zap.Logger {
	if t == nil {
		return f.root
	}
	return f.root.Named(TypeName(t)).With(zap.String("component", t.String()))
}

// TypeName returns a short, dot-free name for t suitable as a logger name:
// "*app.Clock" becomes "app_Clock".
func TypeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.String()
	return strings.NewReplacer(".", "_", "*", "", "[", "_", "]", "", " ", "").Replace(name)
}

// Package config persists and loads a single typed configuration value per slot.
//
// A Slot is a filesystem path. Store[T] reads it on demand and never caches:
//
//   - Load returns the zero value of T when the path does not exist, and a
//     CONFIG_CORRUPT error when the content cannot be read, decoded or validated.
//   - Save creates the parent directory, encodes the value and atomically replaces
//     the file, so a failed write never leaves a partial file at the slot path.
//
// # Formats
//
// The codec is chosen from the slot's extension:
//
//	config.json   indented JSON (default for unknown extensions)
//	config.yaml   YAML (.yml also accepted)
//	config.toml   TOML
//
// # Usage
//
//	slot, err := config.NewSlot("/var/lib/host/config.json")
//	store := config.NewStore[HostConfig](slot, config.WithValidation(), config.WithLogger(logger))
//	cfg, err := store.Load(ctx)
//	cfg.Tags = append(cfg.Tags, "blue")
//	err = store.Save(ctx, cfg)
//
// # Hot reload
//
// Watcher[T] watches the slot's directory and reloads through the store when the
// file changes, notifying registered callbacks with the new value.
//
// # Host settings
//
// Settings are the process-level knobs (config path, environment, log level,
// diagnostics address) read from BOOTSTRAP_* environment variables.
//
// Concurrent Save calls against the same slot are not coordinated; callers that
// write from several goroutines must serialize them.
package config

// Package config loads chorebot's JSON or YAML configuration, expands
// ${ENV} references, validates it and hot-reloads it via fsnotify.
package config

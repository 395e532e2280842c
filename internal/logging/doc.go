// Package logging provides slog construction and the shared attribute
// vocabulary used across takevault components.
package logging

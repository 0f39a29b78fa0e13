package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidGuildID is returned when a guild ID is not a 17-20 digit snowflake
	ErrInvalidGuildID = errors.New("invalid guild ID")

	// ErrLockTimeout is returned when a save waited longer than the configured lock bound
	ErrLockTimeout = errors.New("timed out waiting for guild settings lock")
)

// ValidationError reports every rule a merged record broke. Nothing was persisted.
type ValidationError struct {
	GuildID    string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid settings for guild %s: %s", e.GuildID, strings.Join(e.Violations, "; "))
}

// StorageError wraps a persistence failure that survived the reconnect attempt
type StorageError struct {
	Op      string
	GuildID string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s settings for guild %s: %v", e.Op, e.GuildID, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

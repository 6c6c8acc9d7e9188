package config

import "fmt"

// Error is a fatal configuration error — ConfigError in spec.md §7.
type Error struct {
	Key     string
	Message string
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config: %s: %s", e.Key, e.Message)
	}
	return fmt.Sprintf("config: %s", e.Message)
}

func errf(key, format string, args ...interface{}) error {
	return &Error{Key: key, Message: fmt.Sprintf(format, args...)}
}

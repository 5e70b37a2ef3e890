package bandeira

import (
	"errors"
	"fmt"
)

// ErrAlreadyStarted is returned by Start on a running App.
var ErrAlreadyStarted = errors.New("bandeira: already started")

// ConfigError indicates invalid configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error [%s]: %s", e.Field, e.Message)
}

// IsConfigError reports whether err is a *ConfigError
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

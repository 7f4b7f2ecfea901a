package model

import "fmt"

// InputError reports an invalid request payload
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input %s: %s", e.Field, e.Message)
}

// ConfigError reports a configuration that prevents the pipeline from starting
type ConfigError struct {
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error %s: %s", e.Key, e.Message)
}

package connector

import "fmt"

// ConfigError indicates the stored connection configuration is incomplete or
// invalid. The caller can fix it by editing the connection.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "connection config: " + e.Reason
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// UpstreamError indicates the target database or API rejected the request.
// Message carries the upstream failure verbatim for diagnosis.
type UpstreamError struct {
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	return e.Message
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NotFoundError indicates a referenced connection or dataset does not resolve.
type NotFoundError struct {
	Resource string
	ID       uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

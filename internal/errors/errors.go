package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType int

const (
	// ConfigurationError represents errors related to configuration
	ConfigurationError ErrorType = iota
	// NetworkError represents errors related to network operations
	NetworkError
	// StorageError represents errors related to file storage
	StorageError
	// ExtractionError represents failures to locate content inside a page
	ExtractionError
	// ValidationError represents validation errors
	ValidationError
	// CrawlerError represents errors specific to the crawler
	CrawlerError
)

// String returns the string representation of an ErrorType
func (e ErrorType) String() string {
	switch e {
	case ConfigurationError:
		return "ConfigurationError"
	case NetworkError:
		return "NetworkError"
	case StorageError:
		return "StorageError"
	case ExtractionError:
		return "ExtractionError"
	case ValidationError:
		return "ValidationError"
	case CrawlerError:
		return "CrawlerError"
	default:
		return "UnknownError"
	}
}

// KetohubError represents an application error with a type and additional context
type KetohubError struct {
	Type    ErrorType
	Message string
	Err     error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *KetohubError) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s]", e.Type.String()))
	parts = append(parts, e.Message)

	if e.Err != nil {
		parts = append(parts, fmt.Sprintf("caused by: %v", e.Err))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, " ")
}

// Unwrap returns the underlying error
func (e *KetohubError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a KetohubError of the same type
func (e *KetohubError) Is(target error) bool {
	if other, ok := target.(*KetohubError); ok {
		return e.Type == other.Type
	}
	return false
}

// New creates a new KetohubError with the specified type and message
func New(errorType ErrorType, message string) *KetohubError {
	return &KetohubError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a type and message
func Wrap(err error, errorType ErrorType, message string) *KetohubError {
	return &KetohubError{
		Type:    errorType,
		Message: message,
		Err:     err,
		Context: make(map[string]interface{}),
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, errorType ErrorType, format string, args ...interface{}) *KetohubError {
	return Wrap(err, errorType, fmt.Sprintf(format, args...))
}

// WithContext adds context to an error
func (e *KetohubError) WithContext(key string, value interface{}) *KetohubError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// GetType returns the type of the outermost KetohubError in the chain, or -1.
func GetType(err error) ErrorType {
	var kerr *KetohubError
	if stderrors.As(err, &kerr) {
		return kerr.Type
	}
	return -1
}

// GetContext returns the context of the outermost KetohubError in the chain
func GetContext(err error) map[string]interface{} {
	var kerr *KetohubError
	if stderrors.As(err, &kerr) {
		return kerr.Context
	}
	return nil
}

// IsType checks if any KetohubError in the chain has the specified type
func IsType(err error, errorType ErrorType) bool {
	return stderrors.Is(err, &KetohubError{Type: errorType})
}

// IsConfigurationError checks if the error is a configuration error
func IsConfigurationError(err error) bool {
	return IsType(err, ConfigurationError)
}

// IsNetworkError checks if the error is a network error
func IsNetworkError(err error) bool {
	return IsType(err, NetworkError)
}

// IsStorageError checks if the error is a storage error
func IsStorageError(err error) bool {
	return IsType(err, StorageError)
}

// IsExtractionError checks if the error is an extraction error
func IsExtractionError(err error) bool {
	return IsType(err, ExtractionError)
}

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeInvalidArgument represents a malformed value for a structurally typed field
	ErrorTypeInvalidArgument ErrorType = "invalid_argument"
	// ErrorTypeUnknownField represents a field outside the vehicle schema
	ErrorTypeUnknownField ErrorType = "unknown_field"
	// ErrorTypeMalformedInput represents persisted JSON missing required keys
	ErrorTypeMalformedInput ErrorType = "malformed_input"
	// ErrorTypeDownload represents a failed image fetch
	ErrorTypeDownload ErrorType = "download"
	// ErrorTypeIO represents a directory or file write failure
	ErrorTypeIO ErrorType = "io"
	// ErrorTypeNetwork represents network-related errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeParsing represents HTML parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// VehicleError represents an error raised while building or persisting a vehicle record
type VehicleError struct {
	Type      ErrorType
	VehicleID string
	Message   string
	URL       string
	Err       error
	Time      time.Time
}

// Error implements the error interface
func (e *VehicleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.VehicleID, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.VehicleID, e.Message)
}

// Unwrap returns the underlying error
func (e *VehicleError) Unwrap() error {
	return e.Err
}

// New creates a new VehicleError
func New(errType ErrorType, vehicleID, message string, err error) *VehicleError {
	return &VehicleError{
		Type:      errType,
		VehicleID: vehicleID,
		Message:   message,
		Err:       err,
		Time:      time.Now(),
	}
}

// NewInvalidArgument creates a new invalid argument error
func NewInvalidArgument(vehicleID, message string) *VehicleError {
	return New(ErrorTypeInvalidArgument, vehicleID, message, nil)
}

// NewUnknownField creates a new unknown field error naming the offending key
func NewUnknownField(vehicleID, key string) *VehicleError {
	return New(ErrorTypeUnknownField, vehicleID, fmt.Sprintf("unknown field %q", key), nil)
}

// NewMalformedInput creates a new malformed input error
func NewMalformedInput(message string) *VehicleError {
	return New(ErrorTypeMalformedInput, "", message, nil)
}

// NewDownload creates a new download error naming the URL
func NewDownload(vehicleID, url string, err error) *VehicleError {
	e := New(ErrorTypeDownload, vehicleID, fmt.Sprintf("failed to download %s", url), err)
	e.URL = url
	return e
}

// NewIO creates a new IO error
func NewIO(vehicleID, message string, err error) *VehicleError {
	return New(ErrorTypeIO, vehicleID, message, err)
}

// NewNetwork creates a new network error
func NewNetwork(source, message string, err error) *VehicleError {
	return New(ErrorTypeNetwork, source, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(source, message string, err error) *VehicleError {
	return New(ErrorTypeParsing, source, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(source string, duration time.Duration) *VehicleError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, source, message, nil)
}

// NewCache creates a new cache error
func NewCache(vehicleID, message string, err error) *VehicleError {
	return New(ErrorTypeCache, vehicleID, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(vehicleID, message string, err error) *VehicleError {
	return New(ErrorTypePublisher, vehicleID, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *VehicleError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// IsType reports whether any error in err's chain is a VehicleError of the given type
func IsType(err error, errType ErrorType) bool {
	var ve *VehicleError
	if stderrors.As(err, &ve) && ve.Type == errType {
		return true
	}
	// errors.As stops at the first match, so walk aggregates explicitly
	var agg DownloadErrors
	if stderrors.As(err, &agg) {
		for _, e := range agg {
			if e.Type == errType {
				return true
			}
		}
	}
	return false
}

// DownloadErrors aggregates the image fetch failures of a single save
type DownloadErrors []*VehicleError

// Error implements the error interface
func (d DownloadErrors) Error() string {
	msgs := make([]string, 0, len(d))
	for _, e := range d {
		msgs = append(msgs, e.Error())
	}
	return fmt.Sprintf("%d image download(s) failed: %s", len(d), strings.Join(msgs, "; "))
}

// Unwrap exposes every member to errors.Is and errors.As
func (d DownloadErrors) Unwrap() []error {
	errs := make([]error, 0, len(d))
	for _, e := range d {
		errs = append(errs, e)
	}
	return errs
}

// URLs returns the URLs that failed, in save order
func (d DownloadErrors) URLs() []string {
	urls := make([]string, 0, len(d))
	for _, e := range d {
		urls = append(urls, e.URL)
	}
	return urls
}

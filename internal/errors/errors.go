// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrDataUnavailable  = errors.New("options chain data unavailable")
	ErrNoEligibleStrike = errors.New("no eligible strike")
	ErrRiskRejected     = errors.New("risk gate rejected order")
	ErrNoFill           = errors.New("order not fillable in bar range")
	ErrBrokerCallFailed = errors.New("broker call failed")
	ErrKillSwitch       = errors.New("kill switch active")
	ErrMarketClosed     = errors.New("market is closed")
	ErrPositionNotFound = errors.New("position not found")
	ErrInsufficientData = errors.New("insufficient historical data")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrCircuitOpen      = errors.New("circuit breaker is open")
)

// BrokerError represents an error returned by the broker API.
type BrokerError struct {
	Op      string
	Symbol  string
	Message string
	Err     error
}

func (e *BrokerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("broker error [%s] %s: %s: %v", e.Op, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("broker error [%s] %s: %s", e.Op, e.Symbol, e.Message)
}

func (e *BrokerError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrBrokerCallFailed
}

// NewBrokerError creates a new BrokerError.
func NewBrokerError(op, symbol, message string, err error) *BrokerError {
	return &BrokerError{
		Op:      op,
		Symbol:  symbol,
		Message: message,
		Err:     err,
	}
}

// DataError represents a market-data fetch or parse error.
type DataError struct {
	Source  string
	Symbol  string
	Message string
	Err     error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.Source, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.Source, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrDataUnavailable
}

// NewDataError creates a new DataError.
func NewDataError(source, symbol, message string, err error) *DataError {
	return &DataError{
		Source:  source,
		Symbol:  symbol,
		Message: message,
		Err:     err,
	}
}

// RiskError represents a risk limit violation.
type RiskError struct {
	Rule    string
	Current float64
	Limit   float64
	Message string
}

func (e *RiskError) Error() string {
	return fmt.Sprintf("risk violation [%s]: %s (current: %.2f, limit: %.2f)", e.Rule, e.Message, e.Current, e.Limit)
}

func (e *RiskError) Unwrap() error {
	return ErrRiskRejected
}

// NewRiskError creates a new RiskError.
func NewRiskError(rule string, current, limit float64, message string) *RiskError {
	return &RiskError{
		Rule:    rule,
		Current: current,
		Limit:   limit,
		Message: message,
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New creates a new error with the given message.
func New(message string) error {
	return errors.New(message)
}

// IsSkip reports whether the error merely defers action to the next
// cycle and must not count toward the consecutive-error threshold.
func IsSkip(err error) bool {
	return errors.Is(err, ErrDataUnavailable) ||
		errors.Is(err, ErrNoEligibleStrike) ||
		errors.Is(err, ErrRiskRejected) ||
		errors.Is(err, ErrMarketClosed) ||
		errors.Is(err, ErrNoFill)
}

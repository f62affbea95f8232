package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MimeLyc/batch-sub-translator/pkg/log"
)

type ErrorType int

const (
	ErrValidation ErrorType = iota
	ErrConfig
	ErrCodec
	ErrGateway
	ErrBatch
	ErrBusy
	ErrNotFound
	ErrRun
	ErrUnknown
)

// ErrCancelled reports a user initiated stop. It is never recorded against
// items or the ledger and is not a run error.
var ErrCancelled = errors.New("translation cancelled")

func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// TransError is the typed error returned by orchestrator operations.
type TransError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *TransError {
	return &TransError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *TransError {
	e := NewError(errorType, message)
	e.Cause = cause
	return e
}

func (e *TransError) Error() string {
	parts := []string{fmt.Sprintf("[%s] %s", e.Type, e.Message)}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, "context: "+strings.Join(ctxParts, ", "))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *TransError) Unwrap() error {
	return e.Cause
}

func (e *TransError) WithContext(key string, value any) *TransError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrValidation:
		return "Validation"
	case ErrConfig:
		return "Config"
	case ErrCodec:
		return "Codec"
	case ErrGateway:
		return "Gateway"
	case ErrBatch:
		return "Batch"
	case ErrBusy:
		return "Busy"
	case ErrNotFound:
		return "NotFound"
	case ErrRun:
		return "Run"
	default:
		return "Unknown"
	}
}

type ErrorHandler interface {
	Handle(err error) bool
	GetAdvice(err *TransError) string
}

type DefaultErrorHandler struct{}

func NewDefaultErrorHandler() ErrorHandler {
	return &DefaultErrorHandler{}
}

// Handle logs err with advice. Cancellation is not logged as an error.
func (h *DefaultErrorHandler) Handle(err error) bool {
	if err == nil {
		return true
	}
	if IsCancelled(err) {
		log.Info("translation interrupted")
		return true
	}

	var tErr *TransError
	if !errors.As(err, &tErr) {
		log.Error("Unknown Error: %v", err)
		return false
	}

	log.Error("Error Detail: %v\n advice: %s", err, h.GetAdvice(tErr))
	return true
}

// GetAdvice returns a hint for the user.
func (h *DefaultErrorHandler) GetAdvice(err *TransError) string {
	switch err.Type {
	case ErrValidation:
		return "Please verify the input: item ids, batch keys and languages must refer to the loaded subtitle"
	case ErrConfig:
		return "Please check that the configuration file or environment variables such as LLM_API_KEY are set correctly"
	case ErrCodec:
		return "Please verify the subtitle file is a well-formed SRT, VTT or ASS file"
	case ErrGateway:
		return "Please check the API key, network connectivity and the provider status; failed batches can be retried"
	case ErrBatch:
		return "Some batches failed; retry them individually or reduce the batch size"
	case ErrBusy:
		return "Another translation action is running; wait for it to finish or cancel it"
	case ErrNotFound:
		return "Load a subtitle file first"
	case ErrRun:
		return "The translation run stopped early; completed items are kept and the run can be started again"
	default:
		return "Please review detailed error information and check relevant configuration and files"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var tErr *TransError
	if errors.As(err, &tErr) {
		return tErr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *TransError {
	return NewErrorWithCause(errorType, message, err)
}

// SafeExecute runs fn and converts a panic into an ErrUnknown error.
func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(ErrUnknown, fmt.Sprintf("runtime error: %v", r))
		}
	}()

	return fn()
}

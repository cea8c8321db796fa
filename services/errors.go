package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrStorage           = errors.New("storage error")
	ErrGeneration        = errors.New("generation failed")
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrContractViolation = errors.New("contract violation")
	ErrDiscarded         = errors.New("completion discarded")

	ErrAuthentication = fmt.Errorf("%w: authentication failed", ErrGeneration)
	ErrSessionClosed  = fmt.Errorf("%w: session closed", ErrContractViolation)
)

// ValidationError lists the offending fields of a rejected payload.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}

// Copyright 2023 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies business-rule violations so the HTTP layer can map
// them to status codes without string matching.
type ErrorKind string

const (
	// KindNotFound: assignment, node or lot reference does not exist.
	KindNotFound ErrorKind = "NotFound"
	// KindForbidden: requesting worker does not own the assignment.
	KindForbidden ErrorKind = "Forbidden"
	// KindInvalidStateTransition: transition not legal from current status.
	KindInvalidStateTransition ErrorKind = "InvalidStateTransition"
	// KindValidation: missing or malformed request field.
	KindValidation ErrorKind = "ValidationError"
	// KindInsufficientStock: strict reservation policy rejected a start
	// because a required material had zero availability. Under the
	// permissive policy the same condition is a warning, not an error.
	KindInsufficientStock ErrorKind = "InsufficientStock"
	// KindConflict: another transition currently holds the assignment;
	// the client can simply retry.
	KindConflict ErrorKind = "Conflict"
	// KindStorage: unexpected infrastructure failure, propagated as-is.
	KindStorage ErrorKind = "StorageError"
)

// DomainError is a typed business error. Storage failures wrap the
// underlying error so the root cause stays in the logs.
type DomainError struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.cause
}

func NotFoundf(format string, args ...any) error {
	return &DomainError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Forbiddenf(format string, args ...any) error {
	return &DomainError{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func InvalidTransitionf(format string, args ...any) error {
	return &DomainError{Kind: KindInvalidStateTransition, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) error {
	return &DomainError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func InsufficientStockf(format string, args ...any) error {
	return &DomainError{Kind: KindInsufficientStock, Message: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) error {
	return &DomainError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Storagef wraps an infrastructure error.
func Storagef(cause error, format string, args ...any) error {
	return &DomainError{Kind: KindStorage, Message: fmt.Sprintf(format, args...), cause: cause}
}

// KindOf returns the classification of err; unknown errors count as storage
// failures.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindStorage
}

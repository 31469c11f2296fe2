/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the editor, the auto-save scheduler and the
// persistence adapters. Callers branch with errors.Is.
var (
	// ErrValidation marks invalid input such as bad dimensions or an empty title.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a reference to a missing element or design.
	ErrNotFound = errors.New("not found")
	// ErrAuthRequired marks a persistence call made without an authenticated owner.
	ErrAuthRequired = errors.New("authentication required")
	// ErrPersistence marks a storage or network failure.
	ErrPersistence = errors.New("persistence failure")
	// ErrLimitExceeded marks a design quota violation.
	ErrLimitExceeded = errors.New("design limit exceeded")
)

// Validationf returns an ErrValidation with a formatted detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf returns an ErrNotFound with a formatted detail.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// PersistenceError wraps a backend failure for op. Errors that already carry a
// taxonomy class are returned unchanged.
func PersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	if Classified(err) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// Classified reports whether err belongs to one of the taxonomy classes.
func Classified(err error) bool {
	for _, c := range []error{ErrValidation, ErrNotFound, ErrAuthRequired, ErrPersistence, ErrLimitExceeded} {
		if errors.Is(err, c) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether a failed save may be retried automatically on the
// next auto-save cycle. Auth, quota and validation failures need user action.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrAuthRequired), errors.Is(err, ErrLimitExceeded), errors.Is(err, ErrValidation):
		return false
	}
	return true
}

// ErrorClass names the taxonomy class of err for logs and telemetry.
// It returns "" for nil and "unknown" for unclassified errors.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAuthRequired):
		return "auth_required"
	case errors.Is(err, ErrLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	}
	return "unknown"
}

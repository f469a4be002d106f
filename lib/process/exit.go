// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Exit codes. ExitUsage follows the flag package: the process never
// started because its command line or configuration was rejected.
const (
	ExitFailure = 1
	ExitUsage   = 2
)

// UsageError marks an error caused by flags or configuration rather
// than by the running service.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// Usage wraps err as a UsageError. A nil err stays nil.
func Usage(err error) error {
	if err == nil {
		return nil
	}
	return &UsageError{Err: err}
}

// ExitCode returns ExitUsage for errors wrapping a UsageError and
// ExitFailure otherwise.
func ExitCode(err error) int {
	var usage *UsageError
	if errors.As(err, &usage) {
		return ExitUsage
	}
	return ExitFailure
}

// Report writes "error: err" to w, with a hint to --help for usage
// errors, and returns the exit code for err.
func Report(w io.Writer, err error) int {
	code := ExitCode(err)
	fmt.Fprintf(w, "error: %v\n", err)
	if code == ExitUsage {
		fmt.Fprintln(w, "run with --help for usage")
	}
	return code
}

// Fatal reports err on stderr and exits. main calls it with the error
// from run, before or after the logger exists.
func Fatal(err error) {
	os.Exit(Report(os.Stderr, err))
}

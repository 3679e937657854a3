// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package step

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	cryptoSSH "golang.org/x/crypto/ssh"

	"github.com/vmware/pack-deploy/pkg/ssh"
)

// ProcessStep runs a remote command. Without a Check the command runs once
// and must exit 0. With a Check it is retried until the check passes or the
// check timeout expires.
type ProcessStep struct {
	StepName string
	Command  string
	Check    *Check
}

// Check validates a command result and bounds how long the command is
// retried until it does. The tags let plan files declare checks inline.
type Check struct {
	ExpectedExitCode  int    `json:"expected_exit_code,omitempty"`
	ExpectedOutput    string `json:"expected_output,omitempty"`
	NotExpectedOutput string `json:"not_expected_output,omitempty"`
	TimeoutSec        int    `json:"timeout_sec,omitempty"`
	RetryIntervalSec  int    `json:"retry_interval_sec,omitempty"`
}

func (s *ProcessStep) Name() string {
	return s.StepName
}

func (s *ProcessStep) Run(ctx context.Context, client *ssh.Client) (string, error) {
	var (
		timeout  = 10 * time.Second // sensible default timeout
		interval = time.Second      // sensible default interval
	)
	if s.Check != nil {
		if s.Check.TimeoutSec > 0 {
			timeout = time.Duration(s.Check.TimeoutSec) * time.Second
		}
		if s.Check.RetryIntervalSec > 0 {
			interval = time.Duration(s.Check.RetryIntervalSec) * time.Second
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var lasterr error
	for {
		out, err := client.RunContext(ctx, s.Command)
		if ctx.Err() != nil {
			return "", s.timeoutErr(ctx.Err(), lasterr)
		}

		exitCode := 0
		if err != nil {
			// Try to extract exit code from error if possible
			var ee *cryptoSSH.ExitError
			if !errors.As(err, &ee) {
				// Not an ExitError, treat as command execution failure
				log.Printf("command '%s' execution failed: %v\n", s.Command, err)
				if s.Check == nil {
					return string(out), fmt.Errorf("command '%s' execution failed: %w", s.Command, err)
				}
				lasterr = err
				if !waitRetry(ctx, interval) {
					return "", s.timeoutErr(ctx.Err(), lasterr)
				}
				continue
			}
			exitCode = ee.ExitStatus()
		}

		if checkErr := s.validate(exitCode, string(out)); checkErr != nil {
			if s.Check == nil {
				return string(out), fmt.Errorf("command '%s' validation failed: %w", s.Command, checkErr)
			}
			log.Printf("command '%s' validation failed: %v\n", s.Command, checkErr)
			lasterr = checkErr
			if !waitRetry(ctx, interval) {
				return "", s.timeoutErr(ctx.Err(), lasterr)
			}
			continue
		}

		return string(out), nil
	}
}

// validate checks the command result against the step's expectations. The
// default expectation is exit code 0.
func (s *ProcessStep) validate(exitCode int, out string) error {
	expectedExit := 0
	if s.Check != nil {
		expectedExit = s.Check.ExpectedExitCode
	}
	if exitCode != expectedExit {
		return fmt.Errorf("expected exit code %d but got %d", expectedExit, exitCode)
	}
	if s.Check == nil {
		return nil
	}
	if s.Check.ExpectedOutput != "" && !strings.Contains(out, s.Check.ExpectedOutput) {
		return fmt.Errorf("expected output %q not found", s.Check.ExpectedOutput)
	}
	if s.Check.NotExpectedOutput != "" && strings.Contains(out, s.Check.NotExpectedOutput) {
		return fmt.Errorf("not expected output %q found", s.Check.NotExpectedOutput)
	}
	return nil
}

func (s *ProcessStep) timeoutErr(ctxErr, lasterr error) error {
	cause := ctxErr
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		cause = ErrStepTimeout
	}
	if lasterr != nil {
		return fmt.Errorf("command '%s' failed after timed out (%w), last error: %v", s.Command, cause, lasterr)
	}
	return fmt.Errorf("command '%s' failed after timed out (%w)", s.Command, cause)
}

// waitRetry sleeps one retry interval, returning false if ctx expires first.
func waitRetry(ctx context.Context, interval time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(interval):
		return true
	}
}

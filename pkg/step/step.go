// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

// Package step defines the unit of remote work a deployment plan executes
// against one target.
package step

import (
	"context"
	"errors"
	"fmt"

	"github.com/vmware/pack-deploy/pkg/ssh"
)

// Step is one named deployment action executed over an established SSH
// connection. Run returns the captured output and an error when the step's
// own success criteria are not met. Steps carry no retry policy of their own
// beyond a ProcessStep check loop; retrying a failed step means re-running
// the deployment.
type Step interface {
	Name() string
	Run(ctx context.Context, client *ssh.Client) (string, error)
}

// ErrStepTimeout marks a step that exceeded its execution deadline.
var ErrStepTimeout = errors.New("step timed out")

// StepError is a step failure on one target. It is recorded in the execution
// ledger and reported; it never aborts work on other targets.
type StepError struct {
	Step   string
	Target string
	Cause  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s on target %s: %v", e.Step, e.Target, e.Cause)
}

func (e *StepError) Unwrap() error {
	return e.Cause
}

// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package plan

import (
	"fmt"

	"github.com/vmware/pack-deploy/pkg/step"
)

// Plan is an ordered list of deployment steps. Step names key the
// execution ledger, so they must be unique within a plan.
type Plan struct {
	Name  string
	Steps []step.Step
}

// Validate rejects plans whose step names would collide in the ledger.
func (p *Plan) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("plan has no name")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan %s has no steps", p.Name)
	}
	seen := make(map[string]bool, len(p.Steps))
	for _, s := range p.Steps {
		name := s.Name()
		if name == "" {
			return fmt.Errorf("plan %s: step with empty name", p.Name)
		}
		if seen[name] {
			return fmt.Errorf("plan %s: duplicate step name %s", p.Name, name)
		}
		seen[name] = true
	}
	return nil
}

// TargetStatus is the terminal outcome of a plan run for one target.
type TargetStatus string

const (
	// TargetSucceeded: every step either ran successfully this run or was
	// already recorded succeeded.
	TargetSucceeded TargetStatus = "succeeded"
	// TargetAlreadyDone: nothing to do, all steps were recorded succeeded
	// by an earlier run.
	TargetAlreadyDone TargetStatus = "already-complete"
	// TargetFailed: a step failed; later steps were not attempted.
	TargetFailed TargetStatus = "failed"
	// TargetInterrupted: the run was cancelled before this target finished.
	TargetInterrupted TargetStatus = "interrupted"
)

// TargetReport describes how a single target fared across the whole plan.
type TargetReport struct {
	Target     string
	Status     TargetStatus
	FailedStep string
	Err        error
	Executed   int
	Skipped    int
}

// RunReport is the outcome of Runner.Run across all targets.
type RunReport struct {
	Release string
	Plan    string
	Targets []*TargetReport
}

// Failed reports whether any target ended in failure.
func (r *RunReport) Failed() bool {
	for _, t := range r.Targets {
		if t.Status == TargetFailed {
			return true
		}
	}
	return false
}

// Interrupted reports whether any target was cut short by cancellation.
func (r *RunReport) Interrupted() bool {
	for _, t := range r.Targets {
		if t.Status == TargetInterrupted {
			return true
		}
	}
	return false
}

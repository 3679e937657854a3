// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package plan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vmware/pack-deploy/pkg/inventory"
	"github.com/vmware/pack-deploy/pkg/release"
	"github.com/vmware/pack-deploy/pkg/ssh"
	"github.com/vmware/pack-deploy/pkg/state"
	"github.com/vmware/pack-deploy/pkg/step"
)

// finishTimeout bounds ledger writes made after the run context is gone,
// so a cancelled run still records what it started.
const finishTimeout = 5 * time.Second

// Dial opens an SSH connection to a target. Tests inject their own.
type Dial func(target *inventory.Target) (*ssh.Client, error)

// DefaultDial connects with the credentials from the inventory entry.
func DefaultDial(target *inventory.Target) (*ssh.Client, error) {
	return ssh.NewClient(&ssh.Config{
		User:                 target.Username,
		Host:                 target.Host,
		Port:                 target.Port,
		Password:             target.Password,
		PrivateKeyPath:       target.PrivateKey,
		PrivateKeyPassphrase: target.Passphrase,
	})
}

// Runner executes a plan against a set of targets, consulting and updating
// the execution ledger so finished work is never repeated.
type Runner struct {
	Store       *state.Store
	Concurrency int
	StepTimeout time.Duration
	Dial        Dial
}

// targetState is owned by one goroutine at a time: targets fan out within a
// step, and steps are separated by a barrier.
type targetState struct {
	target     *inventory.Target
	client     *ssh.Client
	failed     bool
	failedStep string
	err        error
	executed   int
	skipped    int
}

func (ts *targetState) fail(stepName string, err error) {
	ts.failed = true
	ts.failedStep = stepName
	ts.err = err
}

func (ts *targetState) report(totalSteps int) *TargetReport {
	rep := &TargetReport{
		Target:   ts.target.Name,
		Executed: ts.executed,
		Skipped:  ts.skipped,
	}
	switch {
	case ts.failed:
		rep.Status = TargetFailed
		rep.FailedStep = ts.failedStep
		rep.Err = ts.err
	case ts.executed+ts.skipped < totalSteps:
		rep.Status = TargetInterrupted
	case ts.executed == 0:
		rep.Status = TargetAlreadyDone
	default:
		rep.Status = TargetSucceeded
	}
	return rep
}

// Run executes the plan's steps in declared order. Within a step, targets
// run concurrently up to Concurrency; a step failure on one target stops
// that target's remaining steps but never touches the others. Step failures
// surface in the report, not in Run's error: Run errors only on invalid
// plans, ledger access problems, or cancellation.
func (r *Runner) Run(ctx context.Context, p *Plan, targets []*inventory.Target, rel *release.Release) (*RunReport, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("plan %s: no targets to run against", p.Name)
	}
	if err := r.Store.EnsureRelease(ctx, rel.ID, rel.ArchivePath, rel.Checksum); err != nil {
		return nil, fmt.Errorf("register release %s: %w", rel.ID, err)
	}

	dial := r.Dial
	if dial == nil {
		dial = DefaultDial
	}
	limit := r.Concurrency
	if limit <= 0 {
		limit = 1
	}

	states := make([]*targetState, len(targets))
	for i, t := range targets {
		states[i] = &targetState{target: t}
	}
	defer func() {
		for _, ts := range states {
			if ts.client != nil {
				ts.client.Close()
			}
		}
	}()

	for _, s := range p.Steps {
		if ctx.Err() != nil {
			break
		}
		var g errgroup.Group
		g.SetLimit(limit)
		for _, ts := range states {
			if ts.failed {
				continue
			}
			g.Go(func() error {
				r.runStep(ctx, s, ts, rel, dial)
				return nil
			})
		}
		// Goroutines report through targetState, never through the group:
		// one target's failure must not cancel its siblings.
		_ = g.Wait()
	}

	report := &RunReport{Release: rel.ID, Plan: p.Name}
	for _, ts := range states {
		report.Targets = append(report.Targets, ts.report(len(p.Steps)))
	}
	return report, ctx.Err()
}

func (r *Runner) runStep(ctx context.Context, s step.Step, ts *targetState, rel *release.Release, dial Dial) {
	if ctx.Err() != nil {
		return
	}

	claimed, err := r.Store.Claim(ctx, rel.ID, s.Name(), ts.target.Name)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		ts.fail(s.Name(), fmt.Errorf("claim step %s for %s: %w", s.Name(), ts.target.Name, err))
		return
	}
	if !claimed {
		ts.skipped++
		log.Printf("[%s] %s already succeeded for release %s, skipping", ts.target.Name, s.Name(), rel.ID)
		return
	}

	if ts.client == nil {
		client, err := dial(ts.target)
		if err != nil {
			dialErr := fmt.Errorf("connect to %s: %w", ts.target.Name, err)
			r.finish(rel.ID, s.Name(), ts.target.Name, state.StateFailed, "", dialErr.Error())
			ts.fail(s.Name(), dialErr)
			log.Printf("[%s] %s failed: %v", ts.target.Name, s.Name(), dialErr)
			return
		}
		ts.client = client
	}

	stepCtx := ctx
	if r.StepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, r.StepTimeout)
		defer cancel()
	}

	out, err := s.Run(stepCtx, ts.client)
	if err != nil {
		if ctx.Err() != nil {
			// Run cancelled mid-step. Record what we know and leave the
			// target interrupted rather than failed.
			r.finish(rel.ID, s.Name(), ts.target.Name, state.StateFailed, out, "interrupted: "+err.Error())
			return
		}
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, step.ErrStepTimeout) {
			err = fmt.Errorf("%w: %v", step.ErrStepTimeout, err)
		}
		stepErr := &step.StepError{Step: s.Name(), Target: ts.target.Name, Cause: err}
		r.finish(rel.ID, s.Name(), ts.target.Name, state.StateFailed, out, err.Error())
		ts.fail(s.Name(), stepErr)
		log.Printf("[%s] %s failed: %v", ts.target.Name, s.Name(), err)
		return
	}

	r.finish(rel.ID, s.Name(), ts.target.Name, state.StateSucceeded, out, "")
	ts.executed++
	log.Printf("[%s] %s ok", ts.target.Name, s.Name())
}

// finish writes the terminal record with its own context so the write
// survives run cancellation.
func (r *Runner) finish(releaseID, stepName, targetName, terminalState, output, errMsg string) {
	ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()
	if err := r.Store.Finish(ctx, releaseID, stepName, targetName, terminalState, output, errMsg); err != nil {
		log.Printf("[%s] record %s outcome: %v", targetName, stepName, err)
	}
}

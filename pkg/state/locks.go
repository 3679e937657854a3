// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrRunLocked means another run holds the release's run lock.
var ErrRunLocked = errors.New("run already in progress")

// RunLockedError carries the owner of a held run lock for reporting.
type RunLockedError struct {
	Release    string
	Owner      string
	AcquiredAt time.Time
}

func (e *RunLockedError) Error() string {
	return fmt.Sprintf("release %s is locked by %s since %s; if that run crashed, re-run with --break-lock",
		e.Release, e.Owner, e.AcquiredAt.Format(time.RFC3339))
}

func (e *RunLockedError) Unwrap() error {
	return ErrRunLocked
}

// AcquireRunLock takes the per-release run lock. Only one run may execute a
// release at a time; everything else the ledger guards builds on this.
func (s *Store) AcquireRunLock(ctx context.Context, release, owner string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_locks (release_id, owner, acquired_at) VALUES (?, ?, ?)`,
		release, owner, time.Now().UTC().Format(time.RFC3339),
	)
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return fmt.Errorf("acquire run lock: %w", err)
	}

	lockErr := &RunLockedError{Release: release}
	var acquiredAt string
	row := s.db.QueryRowContext(ctx,
		`SELECT owner, acquired_at FROM run_locks WHERE release_id = ?`, release)
	if scanErr := row.Scan(&lockErr.Owner, &acquiredAt); scanErr == nil {
		lockErr.AcquiredAt, _ = time.Parse(time.RFC3339, acquiredAt)
	}
	return lockErr
}

// ReleaseRunLock drops the lock held by owner. Releasing a lock someone else
// holds is refused.
func (s *Store) ReleaseRunLock(ctx context.Context, release, owner string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM run_locks WHERE release_id = ? AND owner = ?`,
		release, owner,
	)
	if err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("release run lock: %s is not held by %s", release, owner)
	}
	return nil
}

// BreakRunLock force-clears a release's lock regardless of owner. This is
// the operator escape hatch for a crashed run.
func (s *Store) BreakRunLock(ctx context.Context, release string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM run_locks WHERE release_id = ?`, release,
	)
	if err != nil {
		return fmt.Errorf("break run lock: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

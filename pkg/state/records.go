// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Execution record states. Succeeded and failed are terminal; a terminal
// succeeded record never transitions out.
const (
	StatePending   = "pending"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
)

// ErrNotFound is returned when a release or record does not exist.
var ErrNotFound = errors.New("not found")

// Release is the immutable ledger row for a built release.
type Release struct {
	ID          string
	ArchivePath string
	Checksum    string
	CreatedAt   time.Time
}

// Record is the ledger row for one (release, step, target) execution.
type Record struct {
	Release    string
	Step       string
	Target     string
	State      string
	Output     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time // zero until the record is terminal
}

// EnsureRelease inserts the release row on first run. An existing row is
// left untouched: releases are immutable once created.
func (s *Store) EnsureRelease(ctx context.Context, id, archivePath, checksum string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO releases (id, archive_path, checksum, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		id, archivePath, checksum, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("ensure release: %w", err)
	}
	return nil
}

func (s *Store) GetRelease(ctx context.Context, id string) (Release, error) {
	var rel Release
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, archive_path, checksum, created_at FROM releases WHERE id = ?`,
		id,
	).Scan(&rel.ID, &rel.ArchivePath, &rel.Checksum, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rel, fmt.Errorf("release %s: %w", id, ErrNotFound)
		}
		return rel, fmt.Errorf("get release: %w", err)
	}
	rel.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return rel, fmt.Errorf("parse created_at: %w", err)
	}
	return rel, nil
}

// Claim atomically takes ownership of a record before executing its step.
// It inserts a fresh pending record, or takes over an existing pending or
// failed one. It returns false when the record is already succeeded: that
// work must not run again. The guard lives in the statement itself, so two
// racing claimants cannot both pass a check-then-set.
func (s *Store) Claim(ctx context.Context, release, stepName, targetName string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO step_records (release_id, step_name, target_name, state, output, error, started_at, finished_at)
		 VALUES (?, ?, ?, 'pending', '', '', ?, NULL)
		 ON CONFLICT (release_id, step_name, target_name) DO UPDATE SET
		   state = 'pending',
		   output = '',
		   error = '',
		   started_at = excluded.started_at,
		   finished_at = NULL
		 WHERE step_records.state != 'succeeded'`,
		release, stepName, targetName, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("claim record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim record: %w", err)
	}
	return n > 0, nil
}

// Finish moves a pending record to a terminal state. Finishing a record that
// is not pending is an error: terminal records are immutable.
func (s *Store) Finish(ctx context.Context, release, stepName, targetName, terminalState, output, errMsg string) error {
	if terminalState != StateSucceeded && terminalState != StateFailed {
		return fmt.Errorf("finish record: %q is not a terminal state", terminalState)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE step_records
		 SET state = ?, output = ?, error = ?, finished_at = ?
		 WHERE release_id = ? AND step_name = ? AND target_name = ? AND state = 'pending'`,
		terminalState, output, errMsg, time.Now().UTC().Format(time.RFC3339),
		release, stepName, targetName,
	)
	if err != nil {
		return fmt.Errorf("finish record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish record %s/%s/%s: record is not pending", release, stepName, targetName)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, release, stepName, targetName string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT release_id, step_name, target_name, state, output, error, started_at, finished_at
		 FROM step_records
		 WHERE release_id = ? AND step_name = ? AND target_name = ?`,
		release, stepName, targetName,
	)
	return scanRecord(row)
}

// ListByRelease returns every record of a release, grouped by target in
// execution order. RFC3339 timestamps sort lexicographically, so ordering
// by started_at is chronological; rowid breaks same-second ties in claim
// order, since the upsert in Claim keeps the original rowid.
func (s *Store) ListByRelease(ctx context.Context, release string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT release_id, step_name, target_name, state, output, error, started_at, finished_at
		 FROM step_records
		 WHERE release_id = ?
		 ORDER BY target_name, started_at, rowid`,
		release,
	)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var rec Record
	var startedAt string
	var finishedAt sql.NullString
	if err := s.Scan(&rec.Release, &rec.Step, &rec.Target, &rec.State, &rec.Output, &rec.Error, &startedAt, &finishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, fmt.Errorf("%w", ErrNotFound)
		}
		return rec, fmt.Errorf("scan record: %w", err)
	}

	t, err := time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return rec, fmt.Errorf("parse started_at: %w", err)
	}
	rec.StartedAt = t

	if finishedAt.Valid {
		t, err := time.Parse(time.RFC3339, finishedAt.String)
		if err != nil {
			return rec, fmt.Errorf("parse finished_at: %w", err)
		}
		rec.FinishedAt = t
	}
	return rec, nil
}

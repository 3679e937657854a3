// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

// Package release assembles versioned content-pack releases: the set of
// source paths named by the configured manifests plus vendored externals,
// packed into a reproducible archive.
package release

import "fmt"

// Release identifies one deployable bundle. It is created when a run starts
// and never mutated afterwards; steps read from it only.
type Release struct {
	// ID is the operator-chosen release identifier (for example a version
	// tag or a VCS revision).
	ID string
	// SourcePaths are the archive entry names, sorted.
	SourcePaths []string
	// ArchivePath is the local location of the built archive.
	ArchivePath string
	// Checksum is the hex SHA-256 of the archive file.
	Checksum string
}

// ArchiveError reports a path that cannot be included in a release archive.
// Archive failures abort a run before any target work starts.
type ArchiveError struct {
	Path string
	Err  error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %s: %v", e.Path, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

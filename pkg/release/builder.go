// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package release

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Builder assembles release archives from a source checkout.
type Builder struct {
	// SourceDir is the checkout releases are built from.
	SourceDir string
	// ArchiveDir is where finished archives are written.
	ArchiveDir string
	// Manifests are files naming source paths to include, one per line.
	// Blank lines and # comments are ignored.
	Manifests []string
	// Externals are vendored directories included wholesale.
	Externals []string
}

// Build collects the release content, writes the archive and returns the
// immutable release description. Any missing path fails the build before a
// single byte is written.
func (b *Builder) Build(releaseID string) (*Release, error) {
	if strings.TrimSpace(releaseID) == "" {
		return nil, fmt.Errorf("release id is required")
	}

	// archive entry name -> source file
	entries := make(map[string]string)

	for _, manifest := range b.Manifests {
		manifestPath := b.resolve(manifest)
		lines, err := readManifest(manifestPath)
		if err != nil {
			return nil, &ArchiveError{Path: manifest, Err: err}
		}
		for _, line := range lines {
			if err := b.addPath(entries, line); err != nil {
				return nil, err
			}
		}
	}

	for _, external := range b.Externals {
		if err := b.addTree(entries, external); err != nil {
			return nil, err
		}
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("release %s has no content: no manifest paths or externals resolved", releaseID)
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	files := make([]archiveFile, 0, len(names))
	for _, name := range names {
		files = append(files, archiveFile{Name: name, Path: entries[name]})
	}

	archivePath := filepath.Join(b.ArchiveDir, releaseID+".tar.gz")
	if err := writeArchive(archivePath, files); err != nil {
		return nil, err
	}

	checksum, err := fileChecksum(archivePath)
	if err != nil {
		return nil, fmt.Errorf("checksum %s: %w", archivePath, err)
	}

	return &Release{
		ID:          releaseID,
		SourcePaths: names,
		ArchivePath: archivePath,
		Checksum:    checksum,
	}, nil
}

// addPath includes a single manifest line: a regular file, or a directory
// walked like an external.
func (b *Builder) addPath(entries map[string]string, rel string) error {
	src := b.resolve(rel)
	info, err := os.Stat(src)
	if err != nil {
		return &ArchiveError{Path: rel, Err: err}
	}
	if info.IsDir() {
		return b.addTree(entries, rel)
	}
	entries[b.archiveName(src)] = src
	return nil
}

// addTree includes every regular file under a directory.
func (b *Builder) addTree(entries map[string]string, rel string) error {
	root := b.resolve(rel)
	rootName := b.archiveName(root)

	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		inner, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		entries[path.Join(rootName, filepath.ToSlash(inner))] = p
		return nil
	})
	if walkErr != nil {
		return &ArchiveError{Path: rel, Err: walkErr}
	}
	return nil
}

// resolve anchors a config-relative path at SourceDir.
func (b *Builder) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(b.SourceDir, p)
}

// archiveName maps a source file to its entry name inside the archive. Files
// under SourceDir keep their tree-relative path; anything else enters under
// its final path element.
func (b *Builder) archiveName(src string) string {
	if rel, err := filepath.Rel(b.SourceDir, src); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.Base(src)
}

func readManifest(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	return paths, nil
}

// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package release

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeSourceTree lays out a small content-pack checkout.
func writeSourceTree(t *testing.T) string {
	t.Helper()
	src := t.TempDir()

	files := map[string]string{
		"actions/deploy.yaml":  "name: deploy\n",
		"rules/cleanup.yaml":   "name: cleanup\n",
		"vendor/js/lib/app.js": "console.log('hi')\n",
		"vendor/js/README.md":  "vendored\n",
		"manifests/core.txt": `# core content
actions/deploy.yaml

rules/cleanup.yaml
`,
	}
	for name, content := range files {
		path := filepath.Join(src, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return src
}

// readArchiveEntries reads back every entry of a tar.gz archive.
func readArchiveEntries(t *testing.T, path string) map[string]string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gr, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gr.Close()

	entries := make(map[string]string)
	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.Zero(t, hdr.ModTime.Unix(), "entry %s must have zero mtime", hdr.Name)
		require.Zero(t, hdr.Uid)
		require.Zero(t, hdr.Gid)

		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[hdr.Name] = string(data)
	}
	return entries
}

func TestBuildCollectsManifestAndExternals(t *testing.T) {
	src := writeSourceTree(t)
	builder := &Builder{
		SourceDir:  src,
		ArchiveDir: t.TempDir(),
		Manifests:  []string{"manifests/core.txt"},
		Externals:  []string{"vendor/js"},
	}

	rel, err := builder.Build("v1.0.0")
	require.NoError(t, err)

	require.Equal(t, "v1.0.0", rel.ID)
	require.Equal(t, []string{
		"actions/deploy.yaml",
		"rules/cleanup.yaml",
		"vendor/js/README.md",
		"vendor/js/lib/app.js",
	}, rel.SourcePaths)

	entries := readArchiveEntries(t, rel.ArchivePath)
	require.Len(t, entries, 4)
	require.Equal(t, "name: deploy\n", entries["actions/deploy.yaml"])
	require.Equal(t, "console.log('hi')\n", entries["vendor/js/lib/app.js"])

	// checksum matches the archive on disk
	data, err := os.ReadFile(rel.ArchivePath)
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("%x", sha256.Sum256(data)), rel.Checksum)

	// no temp file left behind
	_, err = os.Stat(rel.ArchivePath + ".tmp")
	require.True(t, os.IsNotExist(err))
}

func TestBuildDeterministic(t *testing.T) {
	src := writeSourceTree(t)

	build := func() []byte {
		builder := &Builder{
			SourceDir:  src,
			ArchiveDir: t.TempDir(),
			Manifests:  []string{"manifests/core.txt"},
			Externals:  []string{"vendor/js"},
		}
		rel, err := builder.Build("v1.0.0")
		require.NoError(t, err)
		data, err := os.ReadFile(rel.ArchivePath)
		require.NoError(t, err)
		return data
	}

	first := build()
	second := build()
	require.Equal(t, first, second, "same inputs must produce byte-identical archives")
}

func TestBuildMissingPathFailsBeforeWriting(t *testing.T) {
	src := writeSourceTree(t)
	manifest := filepath.Join(src, "manifests", "broken.txt")
	require.NoError(t, os.WriteFile(manifest, []byte("actions/deploy.yaml\nactions/gone.yaml\n"), 0o644))

	archiveDir := t.TempDir()
	builder := &Builder{
		SourceDir:  src,
		ArchiveDir: archiveDir,
		Manifests:  []string{"manifests/broken.txt"},
	}

	_, err := builder.Build("v1.0.0")
	require.Error(t, err)

	var archiveErr *ArchiveError
	require.True(t, errors.As(err, &archiveErr))
	require.Equal(t, "actions/gone.yaml", archiveErr.Path)

	// nothing was written
	_, statErr := os.Stat(filepath.Join(archiveDir, "v1.0.0.tar.gz"))
	require.True(t, os.IsNotExist(statErr))
}

func TestWriteArchiveCleansUpTempOnFailure(t *testing.T) {
	src := writeSourceTree(t)
	dst := filepath.Join(t.TempDir(), "v1.0.0.tar.gz")

	// the second source disappears between collection and write
	files := []archiveFile{
		{Name: "actions/deploy.yaml", Path: filepath.Join(src, "actions/deploy.yaml")},
		{Name: "rules/cleanup.yaml", Path: filepath.Join(src, "rules", "gone.yaml")},
	}

	err := writeArchive(dst, files)
	require.Error(t, err)

	_, statErr := os.Stat(dst + ".tmp")
	require.True(t, os.IsNotExist(statErr), "failed write must not leave a temp file")
	_, statErr = os.Stat(dst)
	require.True(t, os.IsNotExist(statErr))
}

func TestBuildManifestLineNamingDirectory(t *testing.T) {
	src := writeSourceTree(t)
	manifest := filepath.Join(src, "manifests", "dirs.txt")
	require.NoError(t, os.WriteFile(manifest, []byte("actions\n"), 0o644))

	builder := &Builder{
		SourceDir:  src,
		ArchiveDir: t.TempDir(),
		Manifests:  []string{"manifests/dirs.txt"},
	}

	rel, err := builder.Build("v1.0.0")
	require.NoError(t, err)
	require.Equal(t, []string{"actions/deploy.yaml"}, rel.SourcePaths)
}

func TestBuildDeduplicatesOverlappingContent(t *testing.T) {
	src := writeSourceTree(t)
	manifest := filepath.Join(src, "manifests", "overlap.txt")
	require.NoError(t, os.WriteFile(manifest, []byte("vendor/js/README.md\n"), 0o644))

	builder := &Builder{
		SourceDir:  src,
		ArchiveDir: t.TempDir(),
		Manifests:  []string{"manifests/overlap.txt"},
		Externals:  []string{"vendor/js"},
	}

	rel, err := builder.Build("v1.0.0")
	require.NoError(t, err)
	require.Equal(t, []string{
		"vendor/js/README.md",
		"vendor/js/lib/app.js",
	}, rel.SourcePaths)
}

func TestBuildEmptyReleaseFails(t *testing.T) {
	builder := &Builder{
		SourceDir:  t.TempDir(),
		ArchiveDir: t.TempDir(),
	}

	_, err := builder.Build("v1.0.0")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no content")
}

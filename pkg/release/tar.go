// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package release

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type archiveFile struct {
	Name string
	Path string
}

// writeArchive writes a deterministic tar.gz: entries sorted by name, zero
// timestamps, uid/gid 0. The same input set always produces byte-identical
// output. The file is written to a temp path, fsynced and renamed into place
// so a concurrent reader never observes a partial archive; a failed write
// removes the temp file.
func writeArchive(dstPath string, files []archiveFile) (err error) {
	if strings.TrimSpace(dstPath) == "" {
		return fmt.Errorf("archive output path is required")
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return err
	}
	tmp := dstPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	gw := gzip.NewWriter(f)
	gw.Name = filepath.Base(dstPath)
	gw.ModTime = time.Unix(0, 0).UTC()
	tw := tar.NewWriter(gw)

	defer func() {
		_ = tw.Close()
		_ = gw.Close()
	}()

	for _, af := range files {
		name := strings.TrimLeft(strings.TrimSpace(af.Name), "/")
		if name == "" {
			return fmt.Errorf("empty archive entry name for %s", af.Path)
		}
		info, err := os.Stat(af.Path)
		if err != nil {
			return &ArchiveError{Path: af.Path, Err: err}
		}
		if info.IsDir() {
			return fmt.Errorf("archive entry %s is a directory", af.Path)
		}
		hdr := &tar.Header{
			Name:     name,
			Mode:     int64(info.Mode().Perm()),
			Size:     info.Size(),
			ModTime:  time.Unix(0, 0).UTC(),
			Uid:      0,
			Gid:      0,
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		src, err := os.Open(af.Path)
		if err != nil {
			return &ArchiveError{Path: af.Path, Err: err}
		}
		_, copyErr := io.Copy(tw, src)
		_ = src.Close()
		if copyErr != nil {
			return copyErr
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := gw.Close(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dstPath)
}

// fileChecksum returns the hex SHA-256 of a file.
func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package step

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/vmware/pack-deploy/pkg/ssh"
)

// TransferStep uploads the release archive and verifies the remote copy
// against the local checksum. The step only succeeds when the remote bytes
// are proven identical.
type TransferStep struct {
	StepName   string
	LocalPath  string
	RemotePath string
	// Checksum is the hex SHA-256 of the local file.
	Checksum string
}

func (s *TransferStep) Name() string {
	return s.StepName
}

func (s *TransferStep) Run(ctx context.Context, client *ssh.Client) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if dir := path.Dir(s.RemotePath); dir != "." && dir != "/" {
		if out, err := client.RunContext(ctx, fmt.Sprintf("mkdir -p %s", dir)); err != nil {
			return string(out), fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	if err := client.UploadContext(ctx, s.LocalPath, s.RemotePath); err != nil {
		return "", fmt.Errorf("upload %s: %w", s.RemotePath, err)
	}

	out, err := client.RunContext(ctx, fmt.Sprintf("sha256sum %s", s.RemotePath))
	if err != nil {
		return string(out), fmt.Errorf("verify %s: %w", s.RemotePath, err)
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 || fields[0] != s.Checksum {
		return string(out), fmt.Errorf("checksum mismatch on %s: expected %s", s.RemotePath, s.Checksum)
	}

	return fmt.Sprintf("uploaded %s (sha256 verified)", s.RemotePath), nil
}

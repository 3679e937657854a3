// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package step

import (
	"context"
	"errors"
	"fmt"
	"strings"

	cryptoSSH "golang.org/x/crypto/ssh"

	"github.com/vmware/pack-deploy/pkg/ssh"
)

// LinkStep points a symlink at the release directory. The flip is a rename
// over a side link, so readers observe either the old target or the new one,
// never a missing link. A link that already points at the target is a no-op
// success.
type LinkStep struct {
	StepName string
	// LinkPath is the symlink being flipped.
	LinkPath string
	// TargetPath is the release directory the link must point at.
	TargetPath string
}

func (s *LinkStep) Name() string {
	return s.StepName
}

func (s *LinkStep) Run(ctx context.Context, client *ssh.Client) (string, error) {
	out, err := client.RunContext(ctx, fmt.Sprintf("readlink %s", s.LinkPath))
	if err == nil && strings.TrimSpace(string(out)) == s.TargetPath {
		return fmt.Sprintf("%s already points at %s", s.LinkPath, s.TargetPath), nil
	}
	if err != nil {
		// A non-zero exit just means the link does not exist yet.
		var ee *cryptoSSH.ExitError
		if !errors.As(err, &ee) {
			return string(out), fmt.Errorf("readlink %s: %w", s.LinkPath, err)
		}
	}

	side := s.LinkPath + ".new"
	if out, err := client.RunContext(ctx, fmt.Sprintf("rm -f %s", side)); err != nil {
		return string(out), fmt.Errorf("remove stale side link %s: %w", side, err)
	}
	if out, err := client.RunContext(ctx, fmt.Sprintf("ln -s %s %s", s.TargetPath, side)); err != nil {
		return string(out), fmt.Errorf("create side link %s: %w", side, err)
	}
	if out, err := client.RunContext(ctx, fmt.Sprintf("mv -T %s %s", side, s.LinkPath)); err != nil {
		return string(out), fmt.Errorf("flip %s: %w", s.LinkPath, err)
	}

	return fmt.Sprintf("%s -> %s", s.LinkPath, s.TargetPath), nil
}

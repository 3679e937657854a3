// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package step

import (
	"context"
	"fmt"
	"strings"

	"github.com/vmware/pack-deploy/pkg/ssh"
)

// RegisterStep runs the configured registration command with the pack batch
// appended. The batch is all-or-nothing: a non-zero exit fails the step for
// every pack in it.
type RegisterStep struct {
	StepName string
	// Command is the registration executable plus leading arguments.
	Command []string
	Packs   []string
}

func (s *RegisterStep) Name() string {
	return s.StepName
}

func (s *RegisterStep) Run(ctx context.Context, client *ssh.Client) (string, error) {
	if len(s.Packs) == 0 {
		return "no packs to register", nil
	}
	if len(s.Command) == 0 {
		return "", fmt.Errorf("registration command is not configured")
	}

	cmd := strings.Join(append(append([]string{}, s.Command...), s.Packs...), " ")
	out, err := client.RunContext(ctx, cmd)
	if err != nil {
		return string(out), fmt.Errorf("register packs %s: %w", strings.Join(s.Packs, ","), err)
	}
	return string(out), nil
}

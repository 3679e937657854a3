// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package plan

import (
	"fmt"
	"path"

	"github.com/vmware/pack-deploy/pkg/config"
	"github.com/vmware/pack-deploy/pkg/release"
	"github.com/vmware/pack-deploy/pkg/step"
)

// stagePath is where the release archive lands on a target before
// extraction. Remote paths always use forward slashes.
func stagePath(cfg *config.Config, rel *release.Release) string {
	return path.Join(cfg.DeployDir, "incoming", rel.ID+".tar.gz")
}

// DefaultPlan is the built-in deployment pipeline: stage the archive on the
// target, unpack it into the release directory, flip the current link, and
// register packs when the config names any.
func DefaultPlan(rel *release.Release, cfg *config.Config) *Plan {
	stage := stagePath(cfg, rel)
	releaseDir := cfg.ReleaseDir(rel.ID)

	steps := []step.Step{
		&step.TransferStep{
			StepName:   "transfer",
			LocalPath:  rel.ArchivePath,
			RemotePath: stage,
			Checksum:   rel.Checksum,
		},
		&step.ProcessStep{
			StepName: "extract",
			Command:  fmt.Sprintf("mkdir -p %s && tar -xzf %s -C %s", releaseDir, stage, releaseDir),
		},
		&step.LinkStep{
			StepName:   "link",
			LinkPath:   cfg.CurrentLink,
			TargetPath: releaseDir,
		},
	}
	if len(cfg.Packs) > 0 {
		steps = append(steps, &step.RegisterStep{
			StepName: "register",
			Command:  cfg.RegisterCmd,
			Packs:    cfg.Packs,
		})
	}
	return &Plan{Name: "deploy", Steps: steps}
}

// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmware/pack-deploy/pkg/plan"
	"github.com/vmware/pack-deploy/pkg/release"
	"github.com/vmware/pack-deploy/pkg/state"
)

func NewCommandRun() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build a release and deploy it to the selected targets",
		Long: `Build the release archive and run the deployment plan against the
selected targets. Steps already recorded as succeeded for this release are
skipped, so re-running after a partial failure resumes where it stopped.`,
		Args: cobra.NoArgs,
		Run:  runCommandFunc,
	}
	cmd.Flags().StringVarP(&releaseID, "release", "r", "", "release identifier, e.g. a version or date stamp")
	cmd.Flags().StringVar(&planFile, "plan", "", "path to a plan file overriding the built-in pipeline")
	cmd.Flags().BoolVar(&breakLock, "break-lock", false, "clear the run lock left behind by a crashed run")
	_ = cmd.MarkFlagRequired("release")
	return cmd
}

func runCommandFunc(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	inv := loadInventory(cfg)
	targets := resolveTargets(inv, "Select the target to deploy to:")

	printLog("Building release %s from %s\n", releaseID, cfg.SourceDir)
	builder := &release.Builder{
		SourceDir:  cfg.SourceDir,
		ArchiveDir: cfg.ArchiveDir,
		Manifests:  cfg.Manifests,
		Externals:  cfg.Externals,
	}
	rel, err := builder.Build(releaseID)
	if err != nil {
		log.Fatalf("Error building release %s: %v", releaseID, err)
	}
	printLog("Built archive %s (sha256 %s)\n", rel.ArchivePath, rel.Checksum)

	p := plan.DefaultPlan(rel, cfg)
	if planFile != "" {
		f, err := plan.LoadFile(planFile)
		if err != nil {
			log.Fatalf("Error loading plan file: %v", err)
		}
		if p, err = f.Bind(rel, cfg); err != nil {
			log.Fatalf("Error binding plan file: %v", err)
		}
	}

	store, err := state.Open(cfg.StateDB)
	if err != nil {
		log.Fatalf("Error opening state database %s: %v", cfg.StateDB, err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The run lock references the release row, so the row must exist first.
	if err := store.EnsureRelease(ctx, rel.ID, rel.ArchivePath, rel.Checksum); err != nil {
		log.Fatalf("Error recording release %s: %v", rel.ID, err)
	}

	owner := lockOwner()
	if breakLock {
		if err := store.BreakRunLock(ctx, rel.ID); err != nil {
			log.Fatalf("Error breaking run lock for release %s: %v", rel.ID, err)
		}
		log.Printf("Run lock for release %s cleared", rel.ID)
	}
	if err := store.AcquireRunLock(ctx, rel.ID, owner); err != nil {
		log.Fatalf("Error acquiring run lock: %v", err)
	}

	runner := &plan.Runner{
		Store:       store,
		Concurrency: cfg.Concurrency,
		StepTimeout: time.Duration(cfg.StepTimeoutSec) * time.Second,
	}
	report, runErr := runner.Run(ctx, p, targets, rel)

	if err := store.ReleaseRunLock(context.Background(), rel.ID, owner); err != nil {
		log.Printf("Error releasing run lock: %v", err)
	}

	if report != nil {
		fmt.Print(report.Render())
	}
	if runErr != nil {
		log.Fatalf("Run did not complete: %v", runErr)
	}
	if report.Failed() {
		log.Fatalf("Release %s was not deployed to all targets", rel.ID)
	}
}

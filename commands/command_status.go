// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/vmware/pack-deploy/pkg/plan"
	"github.com/vmware/pack-deploy/pkg/state"
)

// NewCommandStatus reports what the ledger recorded for a release without
// touching any target.
func NewCommandStatus() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the recorded deployment state of a release",
		Args:  cobra.NoArgs,
		Run:   statusCommandFunc,
	}
	cmd.Flags().StringVarP(&releaseID, "release", "r", "", "release identifier")
	_ = cmd.MarkFlagRequired("release")
	return cmd
}

func statusCommandFunc(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	store, err := state.Open(cfg.StateDB)
	if err != nil {
		log.Fatalf("Error opening state database %s: %v", cfg.StateDB, err)
	}
	defer store.Close()

	ctx := context.Background()
	_, err = store.GetRelease(ctx, releaseID)
	if errors.Is(err, state.ErrNotFound) {
		log.Fatalf("Release %s has no recorded runs", releaseID)
	}
	if err != nil {
		log.Fatalf("Error reading release %s: %v", releaseID, err)
	}

	records, err := store.ListByRelease(ctx, releaseID)
	if err != nil {
		log.Fatalf("Error reading records for release %s: %v", releaseID, err)
	}
	fmt.Print(plan.RenderRecords(releaseID, records))
}

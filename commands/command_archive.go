// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/vmware/pack-deploy/pkg/release"
)

// NewCommandArchive builds the release archive without deploying it, so the
// bundle can be inspected or shipped through another channel.
func NewCommandArchive() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Build the release archive without deploying it",
		Args:  cobra.NoArgs,
		Run:   archiveCommandFunc,
	}
	cmd.Flags().StringVarP(&releaseID, "release", "r", "", "release identifier")
	_ = cmd.MarkFlagRequired("release")
	return cmd
}

func archiveCommandFunc(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

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

	fmt.Printf("Release: %s\n", rel.ID)
	fmt.Printf("Archive: %s\n", rel.ArchivePath)
	fmt.Printf("SHA256: %s\n", rel.Checksum)
	fmt.Printf("Files: %d\n", len(rel.SourcePaths))
}

// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vmware/pack-deploy/pkg/inventory"
	"github.com/vmware/pack-deploy/pkg/plan"
)

// NewCommandFetch copies a remote file from target(s) to the local machine,
// one subdirectory per target. Useful for pulling registration logs or
// deployed files back for inspection.
func NewCommandFetch() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch a remote file from target(s)",
		Args:  cobra.NoArgs,
		Run:   fetchCommandFunc,
	}
	cmd.Flags().StringVarP(&fetchPath, "path", "p", "", "remote file to fetch from the target(s)")
	cmd.Flags().StringVarP(&fetchOutDir, "out", "o", ".", "local directory the fetched files are written under")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func fetchCommandFunc(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	inv := loadInventory(cfg)
	targets := resolveTargets(inv, "Select the target to fetch from:")

	for _, target := range targets {
		localPath := filepath.Join(fetchOutDir, target.Name, filepath.Base(fetchPath))
		if err := fetchFile(target, fetchPath, localPath); err != nil {
			log.Printf("Error fetching %s from target (%s: %s): %v\n", fetchPath, target.Name, target.Host, err)
			continue
		}
		fmt.Printf("%s: %s\n", target.Name, localPath)
	}
}

func fetchFile(target *inventory.Target, remotePath, localPath string) error {
	printLog("Connecting to target (%s: %s)\n", target.Name, target.Host)

	client, err := plan.DefaultDial(target)
	if err != nil {
		return fmt.Errorf("create ssh client: %w", err)
	}
	defer client.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}

	printLog("Fetching %s from target (%s: %s)\n", remotePath, target.Name, target.Host)
	return client.Download(remotePath, localPath)
}

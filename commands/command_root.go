// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"github.com/spf13/cobra"

	"github.com/vmware/pack-deploy/pkg/config"
)

const (
	cliName        = "pack-deploy"
	cliDescription = "A tool to build versioned pack releases and deploy them to target hosts over SSH"
)

var (
	configFile    string
	inventoryFile string
	targetsSpec   string
	verbose       bool

	releaseID   string
	planFile    string
	breakLock   bool
	userCmd     string
	fetchPath   string
	fetchOutDir string

	rootCmd = &cobra.Command{
		Use:   cliName,
		Short: cliDescription,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultConfigFilename, "path to the deployment config file")
	rootCmd.PersistentFlags().StringVar(&inventoryFile, "inventory", "", "path to the target inventory file (default: next to the config file)")
	rootCmd.PersistentFlags().StringVarP(&targetsSpec, "targets", "t", "", "targets to act on: comma-separated names, group:<name>, or all")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(
		NewCommandVersion(),
		NewCommandRun(),
		NewCommandStatus(),
		NewCommandArchive(),
		NewCommandTargets(),
		NewCommandExecute(),
		NewCommandFetch(),
	)
}

func RootCmd() *cobra.Command {
	return rootCmd
}

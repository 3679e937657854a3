// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"fmt"
	"log"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/vmware/pack-deploy/pkg/cliui"
	"github.com/vmware/pack-deploy/pkg/config"
	"github.com/vmware/pack-deploy/pkg/inventory"
)

func printLog(format string, v ...any) {
	if verbose {
		log.Printf(format, v...)
	}
}

// loadConfig reads the deployment config, honoring the --inventory override.
func loadConfig() *config.Config {
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("Error loading config file %s: %v", configFile, err)
	}
	if inventoryFile != "" {
		cfg.Inventory = inventoryFile
	}
	return cfg
}

func loadInventory(cfg *config.Config) *inventory.Inventory {
	inv, err := inventory.Load(cfg.Inventory)
	if err != nil {
		log.Fatalf("Error loading inventory file %s: %v", cfg.Inventory, err)
	}
	return inv
}

// resolveTargets turns the --targets flag into concrete targets. Without the
// flag, an interactive session gets a picker; everything else defaults to
// all targets.
func resolveTargets(inv *inventory.Inventory, promptMsg string) []*inventory.Target {
	spec := targetsSpec
	if spec == "" {
		spec = "all"
		if isatty.IsTerminal(os.Stdin.Fd()) {
			spec = pickTarget(inv, promptMsg)
		}
	}

	targets, err := inv.Resolve(spec)
	if err != nil {
		log.Fatalf("Error resolving targets %q: %v", spec, err)
	}
	return targets
}

// pickTarget shows the inventory names as a selection list with an extra
// "all" entry. Either choice is a valid target spec.
func pickTarget(inv *inventory.Inventory, promptMsg string) string {
	options := append(inv.Names(), "all")

	_, choice, err := cliui.Select(promptMsg, options)
	if err != nil {
		log.Fatalf("no target selected, exiting: %v", err)
	}
	return choice
}

// lockOwner identifies this process in the run lock table.
func lockOwner() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s/pid-%d", hostname, os.Getpid())
}

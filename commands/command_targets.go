// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
)

// NewCommandTargets lists the inventory, or the subset a --targets spec
// resolves to. Useful to check group membership before a run.
func NewCommandTargets() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List inventory targets and their groups",
		Args:  cobra.NoArgs,
		Run:   targetsCommandFunc,
	}
}

func targetsCommandFunc(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	inv := loadInventory(cfg)

	spec := targetsSpec
	if spec == "" {
		spec = "all"
	}
	targets, err := inv.Resolve(spec)
	if err != nil {
		log.Fatalf("Error resolving targets %q: %v", spec, err)
	}

	for _, t := range targets {
		line := fmt.Sprintf("%s\t%s:%d", t.Name, t.Host, t.Port)
		if len(t.Groups) > 0 {
			line += "\t" + strings.Join(t.Groups, ",")
		}
		fmt.Println(line)
	}
}

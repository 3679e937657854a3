// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/vmware/pack-deploy/pkg/inventory"
	"github.com/vmware/pack-deploy/pkg/plan"
)

// NewCommandExecute executes a command against target(s).
// Runs the command against a single target if the user selects one, or
// against every resolved target for --targets/all.
func NewCommandExecute() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Execute a command against target(s)",
		Args:  cobra.NoArgs,
		Run:   executeCommandFunc,
	}
	cmd.Flags().StringVarP(&userCmd, "command", "e", "", "command to execute against the target(s)")
	_ = cmd.MarkFlagRequired("command")
	return cmd
}

func executeCommandFunc(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	inv := loadInventory(cfg)
	targets := resolveTargets(inv, "Select the target to execute the command against:")

	for _, target := range targets {
		out, err := executeUserCommand(target, userCmd)
		if err != nil {
			log.Printf("Error executing command %q on target (%s: %s), output:\n %s\n error:\n %v\n",
				userCmd, target.Name, target.Host, string(out), err)
			continue
		}
		fmt.Printf("%s:\n%s", target.Name, string(out))
	}
}

func executeUserCommand(target *inventory.Target, command string) ([]byte, error) {
	printLog("Connecting to target (%s: %s)\n", target.Name, target.Host)

	client, err := plan.DefaultDial(target)
	if err != nil {
		return nil, fmt.Errorf("create ssh client: %w", err)
	}
	defer client.Close()

	printLog("Executing command %q on target (%s: %s)\n", command, target.Name, target.Host)
	return client.Run(command)
}

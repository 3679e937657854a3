// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package main

import (
	"fmt"
	"log"

	"github.com/vmware/pack-deploy/pkg/cliui"
)

func main() {
	index, choice, err := cliui.Select("Please select one of the targets:", []string{"st2-prod-1", "st2-prod-2", "st2-stage-1"})

	if err != nil {
		log.Fatalf("Error occurred during selection: %v", err)
	}

	fmt.Printf("Index: %d, Choice: %s\n", index, choice)
}

// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

// Package inventory holds the registry of deployment targets and resolves
// operator-facing target specs ("all", names, group selectors) into concrete
// target sets.
package inventory

import (
	"fmt"
	"os"
	"strings"

	"sigs.k8s.io/yaml"
)

const DefaultPort = 22

// Target is one deployable host. Targets are immutable once resolved: steps
// receive them read-only.
type Target struct {
	Name       string   `json:"name"`
	Host       string   `json:"host"`
	Port       int      `json:"port,omitempty"`
	Username   string   `json:"username"`
	Password   string   `json:"password,omitempty"`
	PrivateKey string   `json:"private_key,omitempty"`
	Passphrase string   `json:"passphrase,omitempty"`
	Groups     []string `json:"groups,omitempty"`
}

// Inventory is the parsed target registry.
type Inventory struct {
	Targets []*Target `json:"targets"`
}

// ResolutionError reports a target spec or target definition that cannot be
// resolved against the inventory.
type ResolutionError struct {
	Query  string
	Reason string
}

func (e *ResolutionError) Error() string {
	if e.Query == "" {
		return fmt.Sprintf("target resolution: %s", e.Reason)
	}
	return fmt.Sprintf("target resolution: %q: %s", e.Query, e.Reason)
}

// Load parses the inventory file and validates every target definition.
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file failed: %w", err)
	}

	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("unmarshal yaml failed: %w", err)
	}

	if err := inv.validate(); err != nil {
		return nil, err
	}

	return &inv, nil
}

func (inv *Inventory) validate() error {
	if len(inv.Targets) == 0 {
		return &ResolutionError{Reason: "inventory is empty"}
	}

	seen := make(map[string]bool, len(inv.Targets))
	for _, target := range inv.Targets {
		if target.Name == "" {
			return &ResolutionError{Reason: "target with empty name"}
		}
		if seen[target.Name] {
			return &ResolutionError{Query: target.Name, Reason: "duplicate target name"}
		}
		seen[target.Name] = true

		if target.Host == "" {
			return &ResolutionError{Query: target.Name, Reason: "host is required"}
		}
		if target.Username == "" {
			return &ResolutionError{Query: target.Name, Reason: "username is required"}
		}
		if target.Password == "" && target.PrivateKey == "" {
			return &ResolutionError{Query: target.Name, Reason: "either password or private_key is required"}
		}
		if target.Port == 0 {
			target.Port = DefaultPort
		}
	}
	return nil
}

// Resolve expands a target spec into a concrete target set. A spec is "all",
// a target name, "group:<name>", or a comma-separated union of those. The
// result is deduplicated and preserves inventory order.
func (inv *Inventory) Resolve(spec string) ([]*Target, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, &ResolutionError{Reason: "empty target spec"}
	}

	selected := make(map[string]bool)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
			return nil, &ResolutionError{Query: spec, Reason: "empty element in target spec"}

		case part == "all":
			for _, target := range inv.Targets {
				selected[target.Name] = true
			}

		case strings.HasPrefix(part, "group:"):
			group := strings.TrimPrefix(part, "group:")
			matched := false
			for _, target := range inv.Targets {
				if target.InGroup(group) {
					selected[target.Name] = true
					matched = true
				}
			}
			if !matched {
				return nil, &ResolutionError{Query: part, Reason: "no targets in group"}
			}

		default:
			found := false
			for _, target := range inv.Targets {
				if target.Name == part {
					selected[target.Name] = true
					found = true
					break
				}
			}
			if !found {
				return nil, &ResolutionError{Query: part, Reason: "no such target"}
			}
		}
	}

	resolved := make([]*Target, 0, len(selected))
	for _, target := range inv.Targets {
		if selected[target.Name] {
			resolved = append(resolved, target)
		}
	}
	return resolved, nil
}

// Names returns every target name in inventory order.
func (inv *Inventory) Names() []string {
	names := make([]string, 0, len(inv.Targets))
	for _, target := range inv.Targets {
		names = append(names, target.Name)
	}
	return names
}

// InGroup reports whether the target belongs to the named group.
func (t *Target) InGroup(group string) bool {
	for _, g := range t.Groups {
		if g == group {
			return true
		}
	}
	return false
}

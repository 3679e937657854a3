// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package inventory

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeInventory(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testInventory(t *testing.T) *Inventory {
	t.Helper()
	path := writeInventory(t, `
targets:
  - name: st2-prod-1
    host: 10.0.0.1
    username: deploy
    password: changeme
    groups: [prod]
  - name: st2-prod-2
    host: 10.0.0.2
    username: deploy
    private_key: ~/.ssh/id_deploy
    groups: [prod]
  - name: st2-stage-1
    host: 10.0.1.1
    port: 2222
    username: deploy
    password: changeme
    groups: [stage]
`)
	inv, err := Load(path)
	require.NoError(t, err)
	return inv
}

func TestLoad(t *testing.T) {
	inv := testInventory(t)

	require.Len(t, inv.Targets, 3)
	require.Equal(t, []string{"st2-prod-1", "st2-prod-2", "st2-stage-1"}, inv.Names())

	// default port filled in, explicit port kept
	require.Equal(t, DefaultPort, inv.Targets[0].Port)
	require.Equal(t, 2222, inv.Targets[2].Port)
}

func TestLoadRejectsMalformedTargets(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "empty inventory",
			content: `targets: []`,
			wantErr: "inventory is empty",
		},
		{
			name: "duplicate names",
			content: `
targets:
  - {name: a, host: 10.0.0.1, username: deploy, password: x}
  - {name: a, host: 10.0.0.2, username: deploy, password: x}
`,
			wantErr: "duplicate target name",
		},
		{
			name: "missing host",
			content: `
targets:
  - {name: a, username: deploy, password: x}
`,
			wantErr: "host is required",
		},
		{
			name: "no credentials",
			content: `
targets:
  - {name: a, host: 10.0.0.1, username: deploy}
`,
			wantErr: "either password or private_key is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeInventory(t, tt.content))
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)

			var resErr *ResolutionError
			require.True(t, errors.As(err, &resErr))
		})
	}
}

func TestResolve(t *testing.T) {
	inv := testInventory(t)

	tests := []struct {
		name string
		spec string
		want []string
	}{
		{name: "all", spec: "all", want: []string{"st2-prod-1", "st2-prod-2", "st2-stage-1"}},
		{name: "single name", spec: "st2-prod-2", want: []string{"st2-prod-2"}},
		{name: "group", spec: "group:prod", want: []string{"st2-prod-1", "st2-prod-2"}},
		{name: "union", spec: "group:stage,st2-prod-1", want: []string{"st2-prod-1", "st2-stage-1"}},
		{name: "union dedupes", spec: "st2-prod-1,group:prod", want: []string{"st2-prod-1", "st2-prod-2"}},
		{name: "whitespace tolerated", spec: " st2-prod-1 , st2-stage-1 ", want: []string{"st2-prod-1", "st2-stage-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			targets, err := inv.Resolve(tt.spec)
			require.NoError(t, err)

			names := make([]string, 0, len(targets))
			for _, target := range targets {
				names = append(names, target.Name)
			}
			require.Equal(t, tt.want, names)
		})
	}
}

func TestResolveErrors(t *testing.T) {
	inv := testInventory(t)

	tests := []struct {
		name string
		spec string
	}{
		{name: "unknown name", spec: "no-such-host"},
		{name: "unknown group", spec: "group:qa"},
		{name: "empty spec", spec: ""},
		{name: "dangling comma", spec: "st2-prod-1,"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := inv.Resolve(tt.spec)
			require.Error(t, err)

			var resErr *ResolutionError
			require.True(t, errors.As(err, &resErr))
		})
	}
}

func TestResolveDoesNotMutateInventory(t *testing.T) {
	inv := testInventory(t)
	before := inv.Names()

	_, err := inv.Resolve("group:prod")
	require.NoError(t, err)
	_, err = inv.Resolve("all")
	require.NoError(t, err)

	require.Equal(t, before, inv.Names())
	require.Len(t, inv.Targets, 3)
}

// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package step

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	cryptoSSH "golang.org/x/crypto/ssh"

	"github.com/vmware/pack-deploy/pkg/ssh"
	"github.com/vmware/pack-deploy/pkg/ssh/sshtest"
)

func startServer(t *testing.T) (*sshtest.Server, *ssh.Client) {
	t.Helper()

	server, err := sshtest.NewServerLocal("testuser", "testpass", 0, t.TempDir())
	require.NoError(t, err)
	require.NoError(t, server.Start())
	t.Cleanup(func() { _ = server.Stop() })

	hostConfig := &ssh.Config{
		User:     "testuser",
		Host:     "127.0.0.1",
		Port:     server.GetPort(),
		Timeout:  30 * time.Second,
		Password: "testpass",
	}
	hostConfig.SetHostKeyCallback(cryptoSSH.FixedHostKey(server.HostPublicKey()))

	client, err := ssh.NewClient(hostConfig)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return server, client
}

func TestProcessStepRunsCommand(t *testing.T) {
	_, client := startServer(t)

	s := &ProcessStep{StepName: "extract", Command: "hostname"}
	out, err := s.Run(context.Background(), client)
	require.NoError(t, err)
	require.Equal(t, "ok\n", out)
	require.Equal(t, "extract", s.Name())
}

func TestProcessStepCheckRetriesUntilOutput(t *testing.T) {
	server, client := startServer(t)

	var calls int32
	server.SetCommandHandler(func(cmd string) (string, int, bool) {
		if cmd != "systemctl is-active st2api" {
			return "", 0, false
		}
		if atomic.AddInt32(&calls, 1) < 3 {
			return "activating\n", 0, true
		}
		return "active\n", 0, true
	})

	s := &ProcessStep{
		StepName: "wait-service",
		Command:  "systemctl is-active st2api",
		Check: &Check{
			ExpectedOutput:    "active",
			NotExpectedOutput: "activating",
			TimeoutSec:        10,
			RetryIntervalSec:  1,
		},
	}

	out, err := s.Run(context.Background(), client)
	require.NoError(t, err)
	require.Equal(t, "active\n", out)
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestProcessStepCheckTimesOut(t *testing.T) {
	server, client := startServer(t)

	server.SetCommandHandler(func(cmd string) (string, int, bool) {
		return "activating\n", 0, true
	})

	s := &ProcessStep{
		StepName: "wait-service",
		Command:  "systemctl is-active st2api",
		Check: &Check{
			ExpectedOutput:   "running",
			TimeoutSec:       2,
			RetryIntervalSec: 1,
		},
	}

	_, err := s.Run(context.Background(), client)
	require.Error(t, err)
	require.Contains(t, err.Error(), "timed out")
	require.ErrorIs(t, err, ErrStepTimeout)
}

func TestProcessStepExpectedExitCode(t *testing.T) {
	server, client := startServer(t)

	server.SetCommandHandler(func(cmd string) (string, int, bool) {
		if cmd == "check-mode" {
			return "maintenance\n", 3, true
		}
		return "", 0, false
	})

	s := &ProcessStep{
		StepName: "check-mode",
		Command:  "check-mode",
		Check:    &Check{ExpectedExitCode: 3},
	}

	out, err := s.Run(context.Background(), client)
	require.NoError(t, err)
	require.Equal(t, "maintenance\n", out)
}

func TestProcessStepWithoutCheckRunsOnce(t *testing.T) {
	server, client := startServer(t)

	var calls int32
	server.SetCommandHandler(func(cmd string) (string, int, bool) {
		atomic.AddInt32(&calls, 1)
		return "nope\n", 1, true
	})

	s := &ProcessStep{StepName: "one-shot", Command: "false"}
	_, err := s.Run(context.Background(), client)
	require.Error(t, err)
	require.Contains(t, err.Error(), "validation failed")
	require.EqualValues(t, 1, atomic.LoadInt32(&calls), "a step without a check must not retry")
}

func TestTransferStepUploadsAndVerifies(t *testing.T) {
	server, client := startServer(t)

	content := []byte("release bytes")
	local := filepath.Join(t.TempDir(), "r1.tar.gz")
	require.NoError(t, os.WriteFile(local, content, 0o644))

	s := &TransferStep{
		StepName:   "transfer",
		LocalPath:  local,
		RemotePath: "/opt/packs/incoming/r1.tar.gz",
		Checksum:   fmt.Sprintf("%x", sha256.Sum256(content)),
	}

	out, err := s.Run(context.Background(), client)
	require.NoError(t, err)
	require.Contains(t, out, "sha256 verified")

	// the file landed on the server
	remote := filepath.Join(server.GetRootDir(), "opt/packs/incoming/r1.tar.gz")
	got, err := os.ReadFile(remote)
	require.NoError(t, err)
	require.Equal(t, content, got)

	cmds := strings.Join(server.GetExecutedCommands(), "\n")
	require.Contains(t, cmds, "mkdir -p /opt/packs/incoming")
	require.Contains(t, cmds, "sha256sum /opt/packs/incoming/r1.tar.gz")
}

func TestTransferStepChecksumMismatch(t *testing.T) {
	_, client := startServer(t)

	local := filepath.Join(t.TempDir(), "r1.tar.gz")
	require.NoError(t, os.WriteFile(local, []byte("release bytes"), 0o644))

	s := &TransferStep{
		StepName:   "transfer",
		LocalPath:  local,
		RemotePath: "/opt/packs/incoming/r1.tar.gz",
		Checksum:   "deadbeef",
	}

	_, err := s.Run(context.Background(), client)
	require.Error(t, err)
	require.Contains(t, err.Error(), "checksum mismatch")
}

func TestTransferStepAbandonsStalledUpload(t *testing.T) {
	server, client := startServer(t)
	server.SetWriteDelay(10 * time.Second)

	local := filepath.Join(t.TempDir(), "r1.tar.gz")
	require.NoError(t, os.WriteFile(local, bytes.Repeat([]byte("p"), 256*1024), 0o644))

	s := &TransferStep{
		StepName:   "transfer",
		LocalPath:  local,
		RemotePath: "/opt/packs/incoming/r1.tar.gz",
		Checksum:   "irrelevant",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.Run(ctx, client)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 3*time.Second, "a stalled upload must not outlive the step deadline")
}

func TestLinkStepCreatesLink(t *testing.T) {
	server, client := startServer(t)

	s := &LinkStep{
		StepName:   "link",
		LinkPath:   "/opt/packs/current",
		TargetPath: "/opt/packs/releases/v1",
	}

	out, err := s.Run(context.Background(), client)
	require.NoError(t, err)
	require.Contains(t, out, "->")

	dest, err := os.Readlink(filepath.Join(server.GetRootDir(), "opt/packs/current"))
	require.NoError(t, err)
	require.Equal(t, "/opt/packs/releases/v1", dest)
}

func TestLinkStepNoOpWhenAlreadyCurrent(t *testing.T) {
	server, client := startServer(t)

	s := &LinkStep{
		StepName:   "link",
		LinkPath:   "/opt/packs/current",
		TargetPath: "/opt/packs/releases/v1",
	}

	_, err := s.Run(context.Background(), client)
	require.NoError(t, err)
	before := len(server.GetExecutedCommands())

	out, err := s.Run(context.Background(), client)
	require.NoError(t, err)
	require.Contains(t, out, "already points")

	// only the readlink check ran the second time
	require.Equal(t, before+1, len(server.GetExecutedCommands()))
}

func TestLinkStepFlipsExistingLink(t *testing.T) {
	server, client := startServer(t)

	linkDir := filepath.Join(server.GetRootDir(), "opt/packs")
	require.NoError(t, os.MkdirAll(linkDir, 0o755))
	require.NoError(t, os.Symlink("/opt/packs/releases/v0", filepath.Join(linkDir, "current")))

	s := &LinkStep{
		StepName:   "link",
		LinkPath:   "/opt/packs/current",
		TargetPath: "/opt/packs/releases/v1",
	}

	_, err := s.Run(context.Background(), client)
	require.NoError(t, err)

	dest, err := os.Readlink(filepath.Join(linkDir, "current"))
	require.NoError(t, err)
	require.Equal(t, "/opt/packs/releases/v1", dest)
}

func TestRegisterStepRunsBatch(t *testing.T) {
	server, client := startServer(t)

	s := &RegisterStep{
		StepName: "register",
		Command:  []string{"st2", "pack", "register"},
		Packs:    []string{"core", "extras"},
	}

	_, err := s.Run(context.Background(), client)
	require.NoError(t, err)

	cmds := server.GetExecutedCommands()
	require.Contains(t, cmds, "st2 pack register core extras")
}

func TestRegisterStepEmptyBatch(t *testing.T) {
	server, client := startServer(t)

	s := &RegisterStep{
		StepName: "register",
		Command:  []string{"st2", "pack", "register"},
	}

	out, err := s.Run(context.Background(), client)
	require.NoError(t, err)
	require.Contains(t, out, "no packs")
	require.Empty(t, server.GetExecutedCommands())
}

func TestStepErrorUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := &StepError{Step: "extract", Target: "st2-prod-1", Cause: cause}

	require.Contains(t, err.Error(), "extract")
	require.Contains(t, err.Error(), "st2-prod-1")
	require.ErrorIs(t, err, cause)
}

// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package plan

import (
	"fmt"
	"os"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/vmware/pack-deploy/pkg/config"
	"github.com/vmware/pack-deploy/pkg/release"
	"github.com/vmware/pack-deploy/pkg/step"
)

// Step kinds accepted in plan files.
const (
	KindProcess  = "process"
	KindTransfer = "transfer"
	KindLink     = "link"
	KindRegister = "register"
)

// File is a declarative plan as written by an operator. It is validated on
// load and bound to a concrete release and config before running.
type File struct {
	Name  string     `json:"name"`
	Steps []FileStep `json:"steps"`
}

// FileStep declares one step. Which fields apply depends on Kind:
// process takes Command and an optional Check; transfer takes an optional
// Destination (default: the staged archive path); link takes optional Path
// and Target (defaults: the config's current link and the release dir);
// register takes nothing and uses the config's register command and packs.
type FileStep struct {
	Name        string      `json:"name"`
	Kind        string      `json:"kind"`
	Command     string      `json:"command,omitempty"`
	Check       *step.Check `json:"check,omitempty"`
	Destination string      `json:"destination,omitempty"`
	Path        string      `json:"path,omitempty"`
	Target      string      `json:"target,omitempty"`
}

// LoadFile reads and validates a plan file. Structural problems surface
// here, before anything touches a target.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file failed: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal plan file %s failed: %w", path, err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("plan file %s: %w", path, err)
	}
	return &f, nil
}

func (f *File) validate() error {
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(f.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	seen := make(map[string]bool, len(f.Steps))
	for i, fs := range f.Steps {
		if fs.Name == "" {
			return fmt.Errorf("step %d: name is required", i+1)
		}
		if seen[fs.Name] {
			return fmt.Errorf("step %d: duplicate step name %s", i+1, fs.Name)
		}
		seen[fs.Name] = true

		switch fs.Kind {
		case KindProcess:
			if fs.Command == "" {
				return fmt.Errorf("step %s: command is required for kind process", fs.Name)
			}
		case KindTransfer, KindLink, KindRegister:
			// Optional fields only; defaults are filled at bind time.
		case "":
			return fmt.Errorf("step %s: kind is required", fs.Name)
		default:
			return fmt.Errorf("step %s: unknown kind %q", fs.Name, fs.Kind)
		}
	}
	return nil
}

// Vars are the substitutions available to ${...} references in plan files.
// They are fixed for a whole run: every target executes the same bound
// command.
type Vars struct {
	Release     string
	ReleaseDir  string
	DeployDir   string
	CurrentLink string
	Archive     string
}

func (v *Vars) lookup(key string) (string, bool) {
	switch key {
	case "RELEASE":
		return v.Release, true
	case "RELEASE_DIR":
		return v.ReleaseDir, true
	case "DEPLOY_DIR":
		return v.DeployDir, true
	case "CURRENT_LINK":
		return v.CurrentLink, true
	case "ARCHIVE":
		return v.Archive, true
	}
	return "", false
}

// expand substitutes ${NAME} references. Only the braced form is recognized,
// so shell text like awk '{print $1}' passes through untouched.
func (v *Vars) expand(s string) (string, error) {
	orig := s
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		b.WriteString(s[:i])

		rest := s[i+2:]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			return "", fmt.Errorf("unterminated variable reference in %q", orig)
		}
		key := rest[:end]
		val, ok := v.lookup(key)
		if !ok {
			return "", fmt.Errorf("unknown variable %q in %q", key, orig)
		}
		b.WriteString(val)
		s = rest[end+1:]
	}
}

// Bind resolves variables and per-kind defaults against a concrete release
// and config, producing an executable plan.
func (f *File) Bind(rel *release.Release, cfg *config.Config) (*Plan, error) {
	vars := &Vars{
		Release:     rel.ID,
		ReleaseDir:  cfg.ReleaseDir(rel.ID),
		DeployDir:   cfg.DeployDir,
		CurrentLink: cfg.CurrentLink,
		Archive:     stagePath(cfg, rel),
	}

	p := &Plan{Name: f.Name}
	for _, fs := range f.Steps {
		s, err := fs.bind(vars, rel, cfg)
		if err != nil {
			return nil, fmt.Errorf("bind step %s: %w", fs.Name, err)
		}
		p.Steps = append(p.Steps, s)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (fs *FileStep) bind(vars *Vars, rel *release.Release, cfg *config.Config) (step.Step, error) {
	switch fs.Kind {
	case KindProcess:
		cmd, err := vars.expand(fs.Command)
		if err != nil {
			return nil, err
		}
		return &step.ProcessStep{StepName: fs.Name, Command: cmd, Check: fs.Check}, nil

	case KindTransfer:
		dest := fs.Destination
		if dest == "" {
			dest = vars.Archive
		}
		dest, err := vars.expand(dest)
		if err != nil {
			return nil, err
		}
		return &step.TransferStep{
			StepName:   fs.Name,
			LocalPath:  rel.ArchivePath,
			RemotePath: dest,
			Checksum:   rel.Checksum,
		}, nil

	case KindLink:
		linkPath := fs.Path
		if linkPath == "" {
			linkPath = vars.CurrentLink
		}
		target := fs.Target
		if target == "" {
			target = vars.ReleaseDir
		}
		linkPath, err := vars.expand(linkPath)
		if err != nil {
			return nil, err
		}
		target, err = vars.expand(target)
		if err != nil {
			return nil, err
		}
		return &step.LinkStep{StepName: fs.Name, LinkPath: linkPath, TargetPath: target}, nil

	case KindRegister:
		if len(cfg.Packs) > 0 && len(cfg.RegisterCmd) == 0 {
			return nil, fmt.Errorf("config has packs but no register_cmd")
		}
		return &step.RegisterStep{StepName: fs.Name, Command: cfg.RegisterCmd, Packs: cfg.Packs}, nil
	}
	return nil, fmt.Errorf("unknown kind %q", fs.Kind)
}

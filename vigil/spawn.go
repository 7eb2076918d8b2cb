// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vigil

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"unsafe"

	"github.com/bureau-foundation/revenant/binder"
	"github.com/bureau-foundation/revenant/lib/binhash"
	"github.com/bureau-foundation/revenant/lib/clock"
	"golang.org/x/sys/unix"
)

// ErrSpawn marks failures to stage a detached watcher. A relationship
// whose watcher cannot be staged does not run at all.
var ErrSpawn = errors.New("vigil: watcher spawn failed")

// The helper chain runs in two stages. The owning process starts the
// helper in StageIntermediate, which starts it again in StageWatch
// and exits immediately; the watch stage reparents to init and
// outlives everything that started it. The stage travels in StageEnv
// so the helper's argument list stays identical across stages.
const (
	StageEnv          = "REVENANT_WATCHDOG_STAGE"
	StageIntermediate = "intermediate"
	StageWatch        = "watch"
)

// watchTitle is the kernel task name the watch stage assumes, naming
// the identity whose watcher it is.
func watchTitle(self string) string {
	return "rvn:" + self + derivedSuffix
}

// Spawner stages detached watcher processes through the helper
// binary, fingerprinted once at construction.
type Spawner struct {
	helper string
	digest string
	logger *slog.Logger
}

// NewSpawner fingerprints the helper binary at path and returns a
// spawner bound to it.
func NewSpawner(helper string, logger *slog.Logger) (*Spawner, error) {
	digest, err := binhash.HashFile(helper)
	if err != nil {
		return nil, fmt.Errorf("%w: fingerprinting %s: %v", ErrSpawn, helper, err)
	}
	return &Spawner{helper: helper, digest: binhash.FormatDigest(digest), logger: logger}, nil
}

func (s *Spawner) HelperPath() string {
	return s.helper
}

// HelperDigest is the hex SHA-256 of the helper binary as it was at
// construction time.
func (s *Spawner) HelperDigest() string {
	return s.digest
}

// Spawn launches the two-stage chain for one relationship and
// returns the detached watcher's PID. The intermediate stage runs in
// its own session, reports the watcher's PID on stdout, and exits so
// this process can reap it here; the watcher keeps running on its
// own.
func (s *Spawner) Spawn(rel Relationship, target binder.StartTarget, version int, device string) (int, error) {
	cmd := exec.Command(s.helper, helperArgs(rel, target, version, device)...)
	cmd.Env = stageEnviron(StageIntermediate)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("%w: intermediate stage for %s: %v", ErrSpawn, rel, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(stdout.String()))
	if err != nil {
		return 0, fmt.Errorf("%w: intermediate reported %q, want a pid", ErrSpawn, strings.TrimSpace(stdout.String()))
	}
	s.logger.Info("watcher staged",
		"relationship", rel.String(), "pid", pid,
		"helper", s.helper, "digest", s.digest)
	return pid, nil
}

func helperArgs(rel Relationship, target binder.StartTarget, version int, device string) []string {
	return []string{
		"--root", rel.Root,
		"--self", rel.Self,
		"--peer", rel.Peer,
		"--package", target.Package,
		"--component", target.Component,
		"--platform-version", strconv.Itoa(version),
		"--device", device,
	}
}

// stageEnviron is the caller's environment with exactly one stage
// marker.
func stageEnviron(stage string) []string {
	env := make([]string, 0, len(os.Environ())+1)
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, StageEnv+"=") {
			env = append(env, kv)
		}
	}
	return append(env, StageEnv+"="+stage)
}

type helperParams struct {
	root    string
	self    string
	peer    string
	target  binder.StartTarget
	version int
	device  string
}

func parseHelperFlags(args []string) (helperParams, error) {
	fs := flag.NewFlagSet("revenant-watchdog", flag.ContinueOnError)
	var p helperParams
	fs.StringVar(&p.root, "root", "", "marker file directory")
	fs.StringVar(&p.self, "self", "", "identity whose indicator this watcher holds")
	fs.StringVar(&p.peer, "peer", "", "identity this watcher monitors")
	fs.StringVar(&p.target.Package, "package", "", "revival target package")
	fs.StringVar(&p.target.Component, "component", "", "revival target component")
	fs.IntVar(&p.version, "platform-version", 0, "platform version for transaction encoding")
	fs.StringVar(&p.device, "device", binder.DefaultDevice, "transaction device path")
	if err := fs.Parse(args); err != nil {
		return p, err
	}
	if p.root == "" || p.self == "" || p.peer == "" {
		return p, errors.New("root, self, and peer are required")
	}
	return p, nil
}

// RunHelper executes one stage of the helper chain. The watchdog
// binary calls it with the stage read from StageEnv.
func RunHelper(stage string, args []string, logger *slog.Logger) error {
	params, err := parseHelperFlags(args)
	if err != nil {
		return err
	}
	switch stage {
	case StageIntermediate:
		return runIntermediate(args)
	case StageWatch:
		return runWatch(params, logger)
	}
	return fmt.Errorf("unknown watchdog stage %q", stage)
}

// runIntermediate starts the watch stage in a fresh session, reports
// its PID for the spawner to record, and returns so this process
// exits and the watcher loses its parent.
func runIntermediate(args []string) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating own binary: %w", err)
	}
	cmd := exec.Command(self, args...)
	cmd.Env = stageEnviron(StageWatch)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting watch stage: %w", err)
	}
	fmt.Println(cmd.Process.Pid)
	return nil
}

// runWatch is the detached watcher: one supervisor cycle over the
// derived marker paths, with a real transport on the configured
// device.
func runWatch(params helperParams, logger *slog.Logger) error {
	setTaskName(watchTitle(params.self))
	rel, err := NewRelationship(params.root, params.self, params.peer)
	if err != nil {
		return err
	}
	sup := &Supervisor{
		Relationship: rel.Derive(),
		Target:       params.target,
		Version:      params.version,
		Transport:    BinderTransport{Binder: binder.NewTransport(params.device)},
		Clock:        clock.Real(),
		Logger:       logger,
	}
	return sup.Run()
}

// setTaskName renames the kernel task, truncating to the 15-byte
// limit. Best effort; the watcher runs the same either way.
func setTaskName(name string) {
	if len(name) > 15 {
		name = name[:15]
	}
	ptr, err := unix.BytePtrFromString(name)
	if err != nil {
		return
	}
	unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(ptr)), 0, 0, 0)
	runtime.KeepAlive(ptr)
}

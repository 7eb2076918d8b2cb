// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostinfo

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Nice returns the scheduling priority (nice value) of the process
// with the given PID. Pass 0 for the calling process.
func Nice(pid int) (int, error) {
	raw, err := unix.Getpriority(unix.PRIO_PROCESS, pid)
	if err != nil {
		return 0, fmt.Errorf("reading priority of pid %d: %w", pid, err)
	}
	// The raw getpriority syscall encodes nice n as 20-n so the return
	// value is never negative. Undo that here; callers see -20..19.
	return 20 - raw, nil
}

// SetNice sets the scheduling priority (nice value) of the process
// with the given PID. Raising priority (lowering the value) requires
// elevated privileges or a permissive RLIMIT_NICE.
func SetNice(pid int, nice int) error {
	if err := unix.Setpriority(unix.PRIO_PROCESS, pid, nice); err != nil {
		return fmt.Errorf("setting priority of pid %d to %d: %w", pid, nice, err)
	}
	return nil
}

// MemorySnapshot is a coarse point-in-time memory reading: the calling
// process's own usage plus system totals.
type MemorySnapshot struct {
	// SelfResidentBytes is the resident set size of the calling
	// process.
	SelfResidentBytes uint64

	// SelfVirtualBytes is the virtual memory size of the calling
	// process.
	SelfVirtualBytes uint64

	// TotalBytes and FreeBytes describe system memory.
	TotalBytes uint64
	FreeBytes  uint64
}

// Memory returns a coarse memory snapshot. Fields that cannot be read
// are left zero.
func Memory() MemorySnapshot {
	snapshot := memoryFrom("/proc/self/statm", os.Getpagesize())

	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err == nil {
		snapshot.TotalBytes = uint64(info.Totalram) * uint64(info.Unit)
		snapshot.FreeBytes = uint64(info.Freeram) * uint64(info.Unit)
	}
	return snapshot
}

// memoryFrom is the testable version of the statm half of Memory.
//
// /proc/[pid]/statm is a single line of page counts:
//
//	size resident shared text lib data dt
func memoryFrom(statmPath string, pageSize int) MemorySnapshot {
	var snapshot MemorySnapshot

	data, err := os.ReadFile(statmPath)
	if err != nil {
		return snapshot
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return snapshot
	}

	size, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return snapshot
	}
	resident, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return snapshot
	}

	snapshot.SelfVirtualBytes = size * uint64(pageSize)
	snapshot.SelfResidentBytes = resident * uint64(pageSize)
	return snapshot
}

// suProbePaths are the conventional locations of a privilege
// escalation binary on the platforms revenant targets.
var suProbePaths = []string{
	"/sbin/su",
	"/system/bin/su",
	"/system/xbin/su",
	"/su/bin/su",
}

// Elevated reports whether the calling process runs with elevated
// privileges, or an escalation path exists on the system (an su
// binary at a conventional location or on PATH).
func Elevated() bool {
	if os.Geteuid() == 0 {
		return true
	}
	for _, path := range suProbePaths {
		if _, err := os.Stat(path); err == nil {
			return true
		}
	}
	if _, err := exec.LookPath("su"); err == nil {
		return true
	}
	return false
}

// ProcessCount returns the number of live processes on the system,
// counted as numeric entries under /proc. Returns 0 if /proc cannot
// be read.
func ProcessCount() int {
	return processCountFrom("/proc")
}

// processCountFrom is the testable version of ProcessCount.
func processCountFrom(procDir string) int {
	entries, err := os.ReadDir(procDir)
	if err != nil {
		return 0
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := strconv.Atoi(filepath.Base(entry.Name())); err == nil {
			count++
		}
	}
	return count
}

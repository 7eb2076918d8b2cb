// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Revenant-watchdog is the detached watcher helper. It is not meant to
// be invoked by hand: revenant-daemon execs it with the staging
// environment set, it re-execs itself once to shed the daemon as a
// parent, and the final incarnation runs the watching half of one
// relationship until the owner dies and has been revived. Command line
// flags carry the relationship paths, revival target, platform
// version, and binder device between stages.
package main

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package vigil implements mutual watchdog supervision between
// cooperating processes. Each process in a watchdog set holds an
// exclusive lock on its own indicator file and blocks on its peer's;
// the kernel releases a dead process's locks, so the blocked
// acquisition returning is the death signal. The surviving side then
// revives the dead one through the platform supervisor and tears
// itself down so the revived peer restarts it in turn.
//
// The filesystem is the only shared medium. Indicator files carry the
// locks, observer files carry the startup rendezvous, and nothing
// else crosses process boundaries. Every relationship runs twice per
// process: once in the owning process, whose locks die with it, and
// once in a detached watcher process spawned through the helper
// binary, using suffixed marker paths so the two halves never collide.
package vigil

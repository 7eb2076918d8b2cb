// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vigil

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	indicatorPrefix = "indicator_"
	observerPrefix  = "observer_"

	// derivedSuffix distinguishes the detached watcher's marker files
	// from the owning process's. Both halves of a relationship run the
	// same cycle; the suffix keeps their locks and rendezvous apart.
	derivedSuffix = "-c"
)

// Relationship names one directed watch: Self holds its own indicator
// and watches Peer's. The value is immutable after construction; the
// derived form for the detached watcher comes from Derive.
type Relationship struct {
	Root    string
	Self    string
	Peer    string
	Derived bool
}

// NewRelationship validates the identities and builds the owning
// process's (non-derived) relationship.
func NewRelationship(root, self, peer string) (Relationship, error) {
	if root == "" {
		return Relationship{}, fmt.Errorf("relationship root directory is empty")
	}
	for _, identity := range []string{self, peer} {
		if identity == "" {
			return Relationship{}, fmt.Errorf("relationship identity is empty")
		}
		if strings.ContainsAny(identity, "/\x00") {
			return Relationship{}, fmt.Errorf("identity %q contains a path separator", identity)
		}
	}
	if self == peer {
		return Relationship{}, fmt.Errorf("identity %q cannot watch itself", self)
	}
	return Relationship{Root: root, Self: self, Peer: peer}, nil
}

// Derive returns the detached watcher's copy of the relationship,
// identical but for the marker path suffix.
func (r Relationship) Derive() Relationship {
	r.Derived = true
	return r
}

func (r Relationship) suffix() string {
	if r.Derived {
		return derivedSuffix
	}
	return ""
}

// SelfIndicator is the marker this side locks and holds until death.
func (r Relationship) SelfIndicator() string {
	return filepath.Join(r.Root, indicatorPrefix+r.Self+r.suffix())
}

// PeerIndicator is the marker this side blocks on to observe the
// peer's death.
func (r Relationship) PeerIndicator() string {
	return filepath.Join(r.Root, indicatorPrefix+r.Peer+r.suffix())
}

// SelfObserver is the rendezvous file this side creates and the peer
// consumes.
func (r Relationship) SelfObserver() string {
	return filepath.Join(r.Root, observerPrefix+r.Self+r.suffix())
}

// PeerObserver is the rendezvous file the peer creates and this side
// consumes.
func (r Relationship) PeerObserver() string {
	return filepath.Join(r.Root, observerPrefix+r.Peer+r.suffix())
}

func (r Relationship) String() string {
	s := r.Self + "->" + r.Peer
	if r.Derived {
		s += derivedSuffix
	}
	return s
}

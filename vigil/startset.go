// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vigil

import (
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/revenant/binder"
	"github.com/bureau-foundation/revenant/lib/clock"
	"github.com/bureau-foundation/revenant/lib/config"
)

// StartSet wires and launches the watchdog set for one identity from
// shared configuration: validate, ensure the marker root, resolve and
// fingerprint the helper binary, then start every configured pair
// that names the identity. Fire and forget; per-pair failures land in
// the returned set's snapshot, not here. Attach the transport before
// calling so staging happens with a known verdict.
func StartSet(cfg *config.Config, identity string, transport *binder.Transport, logger *slog.Logger) (*Set, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pairs := cfg.PairsFor(identity)
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no configured pair names identity %q", identity)
	}
	if err := cfg.EnsureRoot(); err != nil {
		return nil, err
	}
	helper, err := cfg.ResolveHelper()
	if err != nil {
		return nil, fmt.Errorf("resolving watchdog helper: %w", err)
	}
	spawner, err := NewSpawner(helper, logger)
	if err != nil {
		return nil, err
	}
	set := &Set{
		Root:     cfg.RootDir,
		Identity: identity,
		Target: binder.StartTarget{
			Package:   cfg.Target.Package,
			Component: cfg.Target.Component,
		},
		Version:   cfg.PlatformVersion,
		Device:    transport.Device(),
		Transport: BinderTransport{Binder: transport},
		Spawner:   spawner,
		Clock:     clock.Real(),
		Logger:    logger,
	}
	set.Start(pairs)
	return set, nil
}

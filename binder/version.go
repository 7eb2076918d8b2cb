// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package binder

// parcelEra selects which start-service argument layout a platform
// generation expects. The activity manager grew two extra leading
// arguments over the years and reads the parcel positionally, so the
// encoder must match the target release exactly.
type parcelEra int

const (
	// eraLegacy: releases before 23. Arguments end with the user id.
	eraLegacy parcelEra = iota

	// eraCallingPackage: releases 23 through 25 insert the calling
	// package name before the user id.
	eraCallingPackage

	// eraForeground: releases 26 and later additionally lead with the
	// require-foreground flag.
	eraForeground
)

// wireProfile is the per-generation encoding decision: the argument
// era plus the transaction code the activity manager registered for
// startService in that release.
type wireProfile struct {
	era  parcelEra
	code uint32
}

// profileFor maps a platform version to its wire profile. Codes were
// read out of the release's transaction tables for the generations
// this was validated on; everything else falls back to 34, the slot
// the method settled into, as a best effort.
func profileFor(version int) wireProfile {
	var p wireProfile
	switch {
	case version >= 26:
		p.era = eraForeground
	case version >= 23:
		p.era = eraCallingPackage
	default:
		p.era = eraLegacy
	}
	switch version {
	case 26, 27:
		p.code = 26
	case 28:
		p.code = 30
	case 29:
		p.code = 24
	default:
		p.code = 34
	}
	return p
}

// TransactionCode reports the startService transaction code for a
// platform version. Defined for every version; unknown generations
// get the best-effort default.
func TransactionCode(version int) uint32 {
	return profileFor(version).code
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package binder

import "fmt"

// supervisorInterface is the RPC descriptor the supervisor checks on
// every incoming transaction.
const supervisorInterface = "android.app.IActivityManager"

// StartTarget names the component a revival brings back: the
// application package and the fully qualified service class inside
// it.
type StartTarget struct {
	Package   string
	Component string
}

func (t StartTarget) String() string {
	return t.Package + "/" + t.Component
}

// writeIntent appends an intent that names its component explicitly
// and nothing else. Field order tracks Intent.writeToParcel, with
// every field this client never sets encoded in its null form. The
// identifier slot (added to the layout in generation 29) is written
// unconditionally for every generation.
func writeIntent(p *Parcel, target StartTarget) {
	p.WriteNullString16()             // action
	p.WriteInt32(0)                   // data URI
	p.WriteNullString16()             // MIME type
	p.WriteNullString16()             // identifier
	p.WriteInt32(0)                   // flags
	p.WriteNullString16()             // package filter
	p.WriteString16(target.Package)   // component package
	p.WriteString16(target.Component) // component class
	p.WriteInt32(0)                   // source bounds
	p.WriteInt32(0)                   // categories
	p.WriteInt32(0)                   // selector
	p.WriteInt32(0)                   // clip data
	p.WriteInt32(-2)                  // content user hint: current user
	p.WriteInt32(-1)                  // extras bundle
}

// StartParcel encodes the supervisor's startService arguments for a
// platform generation. The caller slot is a null binder: the sender
// is not an application process and has no thread to offer. Later
// generations insert the require-foreground flag and the calling
// package ahead of the user id, so the tail is era-branched.
func StartParcel(target StartTarget, version int) *Parcel {
	p := NewParcel()
	p.WriteInterfaceToken(supervisorInterface)
	p.WriteNullBinder()   // caller application thread
	p.WriteInt32(1)       // intent follows
	writeIntent(p, target)
	p.WriteNullString16() // resolved MIME type
	switch profileFor(version).era {
	case eraForeground:
		p.WriteInt32(0) // require foreground
		p.WriteString16(target.Package)
	case eraCallingPackage:
		p.WriteString16(target.Package)
	}
	p.WriteInt32(0) // user id
	return p
}

// StartService issues the one-way start transaction for the target
// through an open channel. The driver acknowledges acceptance only;
// whether the supervisor actually spawns the component is outside
// the sender's view.
func StartService(ch *Channel, handle uint32, target StartTarget, version int) error {
	code := TransactionCode(version)
	if _, err := ch.Transact(handle, code, StartParcel(target, version), true); err != nil {
		return fmt.Errorf("starting %s: %w", target, err)
	}
	return nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package binder

import "fmt"

const (
	// contextManagerHandle is the fixed handle every process can reach
	// without prior introduction.
	contextManagerHandle = 0

	// checkServiceTransaction is the context manager's lookup call,
	// the first code in its interface.
	checkServiceTransaction = 1

	serviceManagerInterface = "android.os.IServiceManager"
)

// SupervisorService is the registered name of the platform supervisor
// that owns process lifecycles. Revival requests go through it.
const SupervisorService = "activity"

// ResolveSupervisor asks the context manager for the supervisor's
// handle. A successful lookup never yields handle 0 (that is the
// context manager itself), so 0 with a non-nil error is the single
// failure shape; callers that keep running treat the zero handle as
// the unresolved sentinel.
func ResolveSupervisor(ch *Channel) (uint32, error) {
	request := NewParcel()
	request.WriteInterfaceToken(serviceManagerInterface)
	request.WriteString16(SupervisorService)

	reply, err := ch.Transact(contextManagerHandle, checkServiceTransaction, request, false)
	if err != nil {
		return 0, fmt.Errorf("looking up %q: %w", SupervisorService, err)
	}
	handle := DecodeHandle(reply)
	if handle == 0 {
		return 0, fmt.Errorf("service %q not registered", SupervisorService)
	}
	return handle, nil
}

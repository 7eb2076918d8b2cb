// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides revenant's standard CBOR encoding
// configuration.
//
// Revenant speaks two wire formats with a clear boundary:
//
//   - The binder parcel format for transactions with the platform
//     supervisor service. That format is foreign and byte-exact; it
//     lives in the binder package, not here.
//   - CBOR for revenant's own protocols: the status socket served by
//     the daemon and queried by the probe CLI.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every revenant package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC
// 8949 §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (sockets):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
package codec

package state

import "errors"

// StateVersion identifies the expected on-disk schema layout of a snapshot.
// Increment this constant whenever breaking changes are made to the stored
// structure.
const StateVersion uint32 = 1

// ErrStateVersionMismatch indicates the stored schema version does not match
// the version supported by the current binary.
var ErrStateVersionMismatch = errors.New("state: schema version mismatch")

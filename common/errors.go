// Copyright (c) 2024 Kasar Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at kasarlabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

// ConstError is a error type that can be used to define immutable
// error constants.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}

const (
	// ErrInvariantViolation is returned when a caller breaks a usage contract
	// of this library: lifecycle methods called out of order, a second writer
	// acquiring an already-held trie, or state needed for a commitment that
	// was never recorded. It is not recoverable for the current block; the
	// block must be retried from scratch.
	ErrInvariantViolation = ConstError("invariant violation")

	// ErrValueOutOfRange is returned when a byte string does not encode a
	// valid prime-field element or a trie key exceeds the trie height. Such
	// values indicate corruption or a bug in the caller and are never masked.
	ErrValueOutOfRange = ConstError("value out of range")
)

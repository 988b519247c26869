// Package validation provides helpers for contract enforcement at
// construction time.
package validation

import "fmt"

// AssertNotNil panics if the provided pointer is nil. Intended for
// constructors where a dependency is mandatory: misconfiguration is a
// programmer error and should fail fast, unlike runtime errors (network
// down, bad payload) which are always recovered.
//
// Usage:
//
//	validation.AssertNotNil(store, "event store")
func AssertNotNil[T any](ptr *T, name string) {
	if ptr == nil {
		panic(fmt.Sprintf("muninn: %s cannot be nil", name))
	}
}

// Assert panics with the given message if cond is false. Same programmer-
// error policy as AssertNotNil, for non-pointer invariants.
func Assert(cond bool, msg string) {
	if !cond {
		panic("muninn: " + msg)
	}
}

// SPDX-License-Identifier: GPL-3.0-or-later

package declare

import (
	"slices"

	"github.com/bassosimone/runtimex"
)

// Class is the position an operation takes in a call chain.
type Class int

const (
	// ClassBody operations run after the opener, in [*Options] key order.
	ClassBody Class = iota

	// ClassOpener operations establish the request. At most one per run.
	ClassOpener

	// ClassCloser operations run last, in the table's canonical order.
	ClassCloser
)

// String returns "body", "opener", or "closer".
func (c Class) String() string {
	switch c {
	case ClassOpener:
		return "opener"
	case ClassCloser:
		return "closer"
	default:
		return "body"
	}
}

// Table is the closed allow-list of operation names a [*Sequencer] accepts,
// together with each name's [Class].
//
// The table encodes the chaining contract of one builder library. When
// targeting a different library, derive a new table from that library's
// contract using [NewTable] and set it in [Config.Table].
//
// A Table is immutable once constructed and safe for concurrent use.
type Table struct {
	classes map[string]Class
	openers []string
	closers []string
}

// NewTable builds a [*Table].
//
// The openers slice defines the order in which openers are looked up. The
// closers slice defines the canonical order in which closers are invoked,
// regardless of how they are declared in [*Options].
//
// This function panics if a name is listed more than once.
func NewTable(openers, closers, body []string) *Table {
	t := &Table{
		classes: make(map[string]Class, len(openers)+len(closers)+len(body)),
		openers: slices.Clone(openers),
		closers: slices.Clone(closers),
	}
	t.add(openers, ClassOpener)
	t.add(closers, ClassCloser)
	t.add(body, ClassBody)
	return t
}

func (t *Table) add(names []string, class Class) {
	for _, name := range names {
		_, found := t.classes[name]
		runtimex.Assert(!found)
		t.classes[name] = class
	}
}

// Classify returns the [Class] of name and whether name is allowed.
func (t *Table) Classify(name string) (Class, bool) {
	class, found := t.classes[name]
	return class, found
}

// Openers returns the opener names in lookup order.
func (t *Table) Openers() []string {
	return slices.Clone(t.openers)
}

// Closers returns the closer names in canonical invocation order.
func (t *Table) Closers() []string {
	return slices.Clone(t.closers)
}

// Names returns every allowed name, sorted.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.classes))
	for name := range t.classes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultTable returns the [*Table] matching superagent-style request
// builders, which is also the contract implemented by the agent package.
//
// Closers run as send, end, then, catch: the body must be written before
// the one-shot end, and the promise continuations come last. Note that
// head and options are body operations in this contract.
func DefaultTable() *Table {
	return defaultTable
}

var defaultTable = NewTable(
	[]string{"get", "put", "post", "patch", "delete", "del", "request"},
	[]string{"send", "end", "then", "catch"},
	[]string{
		"accept",
		"agent",
		"attach",
		"auth",
		"buffer",
		"ca",
		"cert",
		"clearTimeout",
		"field",
		"getHeader",
		"head",
		"key",
		"maxResponseSize",
		"ok",
		"on",
		"once",
		"options",
		"parse",
		"pfx",
		"pipe",
		"query",
		"redirects",
		"responseType",
		"retry",
		"serialize",
		"set",
		"sortQuery",
		"timeout",
		"type",
		"unset",
		"use",
		"withCredentials",
	},
)

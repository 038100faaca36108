// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolve turns user symbol requests into unique spans.
//
// Resolution is deterministic and file-aware: name-only lookup succeeds
// only when the name is globally unique across the symbol store, and
// every other outcome is a well-typed failure carrying an actionable
// hint. The package also hosts the Rust-only workspace reference finder
// used by cross-file deletion.
package resolve

import (
	"fmt"
	"strings"

	"github.com/oldnordic/splice/ast"
	"github.com/oldnordic/splice/graph"
)

// Query identifies the symbol to resolve. File and Kind narrow the
// candidate set; Name is required.
type Query struct {
	Name string
	File string
	Kind ast.SymbolKind
}

// SymbolNotFoundError reports a query matching no symbol.
type SymbolNotFoundError struct {
	// Name is the requested symbol.
	Name string

	// File is the file restriction, when one was given.
	File string

	// Hint suggests how to adjust the query.
	Hint string
}

func (e *SymbolNotFoundError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("symbol %q not found in %s", e.Name, e.File)
	}
	return fmt.Sprintf("symbol %q not found", e.Name)
}

// ErrorKind returns the stable kind tag for CLI payloads.
func (e *SymbolNotFoundError) ErrorKind() string { return "SymbolNotFound" }

// FilePath returns the file restriction, when one was given.
func (e *SymbolNotFoundError) FilePath() string { return e.File }

// HintText returns the actionable hint.
func (e *SymbolNotFoundError) HintText() string { return e.Hint }

// Candidate describes one match of an ambiguous resolution.
type Candidate struct {
	File string         `json:"file"`
	Kind ast.SymbolKind `json:"kind"`
	Line int            `json:"line"`
}

// AmbiguousSymbolError reports a query matching more than one symbol.
type AmbiguousSymbolError struct {
	// Name is the requested symbol.
	Name string

	// Candidates lists every match.
	Candidates []Candidate
}

func (e *AmbiguousSymbolError) Error() string {
	var locations []string
	for _, c := range e.Candidates {
		locations = append(locations, fmt.Sprintf("%s (%s)", c.File, c.Kind))
	}
	return fmt.Sprintf("ambiguous symbol %q: found in %s", e.Name, strings.Join(locations, ", "))
}

// ErrorKind returns the stable kind tag for CLI payloads.
func (e *AmbiguousSymbolError) ErrorKind() string { return "AmbiguousSymbol" }

// HintText returns the actionable hint.
func (e *AmbiguousSymbolError) HintText() string {
	return "pass --file (and --kind) to disambiguate symbols defined in multiple places"
}

// Resolve applies the disambiguation policy to q against idx.
//
// Rules, in order: restrict to q.File when given, then to q.Kind when
// given. Exactly one survivor resolves; zero fails with
// *SymbolNotFoundError; more than one fails with *AmbiguousSymbolError
// naming every candidate. C++/Java overload sets therefore surface as
// ambiguity unless the caller supplies a distinguishing span directly.
func Resolve(idx *graph.Index, q Query) (ast.Symbol, error) {
	var candidates []ast.Symbol
	switch {
	case q.File != "" && q.Kind != "":
		candidates = idx.ByTuple(q.File, q.Name, q.Kind)
	case q.File != "":
		candidates = idx.ByFileName(q.File, q.Name)
	default:
		candidates = idx.ByName(q.Name)
		if q.Kind != "" {
			var filtered []ast.Symbol
			for _, s := range candidates {
				if s.Kind == q.Kind {
					filtered = append(filtered, s)
				}
			}
			candidates = filtered
		}
	}

	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		return ast.Symbol{}, &SymbolNotFoundError{
			Name: q.Name,
			File: q.File,
			Hint: notFoundHint(q),
		}
	default:
		result := make([]Candidate, 0, len(candidates))
		for _, s := range candidates {
			result = append(result, Candidate{File: s.File, Kind: s.Kind, Line: s.LineStart})
		}
		return ast.Symbol{}, &AmbiguousSymbolError{Name: q.Name, Candidates: result}
	}
}

func notFoundHint(q Query) string {
	switch {
	case q.File != "" && q.Kind != "":
		return fmt.Sprintf("ensure %q exists in %s, or drop --kind %s", q.Name, q.File, q.Kind)
	case q.File != "":
		return fmt.Sprintf("ensure %q exists in %s, or drop --file to search the whole store", q.Name, q.File)
	default:
		return fmt.Sprintf("ensure %q is ingested and spelled correctly, or pass --file", q.Name)
	}
}

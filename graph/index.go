// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph stores extracted symbols for resolution.
//
// The in-memory Index is what every operation uses: a multi-index over
// (name), (file, name), and (file, name, kind). The Badger-backed Store
// persists symbols across invocations for out-of-band queries; the patch
// engine itself never requires it.
package graph

import (
	"fmt"

	"github.com/oldnordic/splice/ast"
)

// Index is the in-memory symbol store for one operation.
//
// Thread Safety: Index is not safe for concurrent mutation. The engine
// is single-threaded; build the index fully before querying.
type Index struct {
	byName     map[string][]ast.Symbol
	byFileName map[string][]ast.Symbol
	byTuple    map[string][]ast.Symbol
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{
		byName:     make(map[string][]ast.Symbol),
		byFileName: make(map[string][]ast.Symbol),
		byTuple:    make(map[string][]ast.Symbol),
	}
}

func fileNameKey(file, name string) string {
	return file + "\x00" + name
}

func tupleKey(file, name string, kind ast.SymbolKind) string {
	return file + "\x00" + name + "\x00" + string(kind)
}

// overloadable reports whether a language legitimately permits several
// symbols to share a (file, name, kind) tuple.
func overloadable(lang ast.Language) bool {
	return lang == ast.LangCpp || lang == ast.LangJava
}

// Add inserts a symbol into all indexes.
//
// Within one (file, name, kind) tuple at most one span may coexist
// unless the language permits overloading (C++, Java); a duplicate in a
// non-overloading language is rejected.
func (idx *Index) Add(lang ast.Language, sym ast.Symbol) error {
	key := tupleKey(sym.File, sym.Name, sym.Kind)
	if existing := idx.byTuple[key]; len(existing) > 0 && !overloadable(lang) {
		// Identical spans can arrive twice when a caller ingests the
		// same file repeatedly; that is not a conflict.
		for _, e := range existing {
			if e.ByteStart == sym.ByteStart && e.ByteEnd == sym.ByteEnd {
				return nil
			}
		}
		return fmt.Errorf("duplicate symbol %s (%s) in %s", sym.Name, sym.Kind, sym.File)
	}

	idx.byName[sym.Name] = append(idx.byName[sym.Name], sym)
	idx.byFileName[fileNameKey(sym.File, sym.Name)] = append(idx.byFileName[fileNameKey(sym.File, sym.Name)], sym)
	idx.byTuple[key] = append(idx.byTuple[key], sym)
	return nil
}

// AddResult ingests every symbol of a parse result.
func (idx *Index) AddResult(result *ast.ParseResult) error {
	for _, sym := range result.Symbols {
		if err := idx.Add(result.Language, sym); err != nil {
			return err
		}
	}
	return nil
}

// ByName returns all symbols sharing a name across all files.
func (idx *Index) ByName(name string) []ast.Symbol {
	return idx.byName[name]
}

// ByFileName returns all symbols with the given name defined in file.
func (idx *Index) ByFileName(file, name string) []ast.Symbol {
	return idx.byFileName[fileNameKey(file, name)]
}

// ByTuple returns all symbols matching (file, name, kind). More than one
// entry is possible only for overload-permitting languages.
func (idx *Index) ByTuple(file, name string, kind ast.SymbolKind) []ast.Symbol {
	return idx.byTuple[tupleKey(file, name, kind)]
}

// Len returns the total number of indexed symbols.
func (idx *Index) Len() int {
	n := 0
	for _, syms := range idx.byName {
		n += len(syms)
	}
	return n
}

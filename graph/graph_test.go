// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oldnordic/splice/ast"
)

func sym(file, name string, kind ast.SymbolKind, start, end int) ast.Symbol {
	return ast.Symbol{
		File: file, Name: name, Kind: kind,
		ByteStart: start, ByteEnd: end,
		LineStart: 1, LineEnd: 1,
		Visibility: ast.VisibilityPublic,
	}
}

func TestIndexLookups(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Add(ast.LangRust, sym("a.rs", "foo", ast.KindFunction, 0, 10)))
	require.NoError(t, idx.Add(ast.LangRust, sym("b.rs", "foo", ast.KindFunction, 5, 15)))
	require.NoError(t, idx.Add(ast.LangRust, sym("a.rs", "Bar", ast.KindStruct, 20, 40)))

	assert.Len(t, idx.ByName("foo"), 2)
	assert.Len(t, idx.ByFileName("a.rs", "foo"), 1)
	assert.Len(t, idx.ByTuple("a.rs", "foo", ast.KindFunction), 1)
	assert.Empty(t, idx.ByTuple("a.rs", "foo", ast.KindStruct))
	assert.Equal(t, 3, idx.Len())
}

func TestIndexRejectsDuplicateTuple(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Add(ast.LangRust, sym("a.rs", "foo", ast.KindFunction, 0, 10)))

	// Same span twice is an idempotent re-ingest, not a conflict.
	require.NoError(t, idx.Add(ast.LangRust, sym("a.rs", "foo", ast.KindFunction, 0, 10)))
	assert.Len(t, idx.ByTuple("a.rs", "foo", ast.KindFunction), 1)

	// A different span for the same tuple is a conflict in Rust.
	err := idx.Add(ast.LangRust, sym("a.rs", "foo", ast.KindFunction, 30, 45))
	assert.Error(t, err)
}

func TestIndexPermitsOverloads(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Add(ast.LangJava, sym("Main.java", "run", ast.KindMethod, 0, 10)))
	require.NoError(t, idx.Add(ast.LangJava, sym("Main.java", "run", ast.KindMethod, 20, 35)))

	assert.Len(t, idx.ByTuple("Main.java", "run", ast.KindMethod), 2)
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := OpenStore(InMemoryStoreConfig())
	require.NoError(t, err)
	defer store.Close()

	symbols := []ast.Symbol{
		sym("a.rs", "foo", ast.KindFunction, 0, 10),
		sym("a.rs", "Bar", ast.KindStruct, 20, 40),
	}
	require.NoError(t, store.PutFileSymbols("a.rs", symbols))

	got, err := store.FileSymbols("a.rs")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	byName, err := store.SymbolsByFileName("a.rs", "foo")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, 0, byName[0].ByteStart)
	assert.Equal(t, 10, byName[0].ByteEnd)
}

func TestStoreReplacesFileSymbols(t *testing.T) {
	store, err := OpenStore(InMemoryStoreConfig())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.PutFileSymbols("a.rs", []ast.Symbol{
		sym("a.rs", "old", ast.KindFunction, 0, 5),
	}))
	require.NoError(t, store.PutFileSymbols("a.rs", []ast.Symbol{
		sym("a.rs", "new", ast.KindFunction, 0, 5),
	}))

	got, err := store.FileSymbols("a.rs")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Name)
}

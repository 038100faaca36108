// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oldnordic/splice/ast"
	"github.com/oldnordic/splice/graph"
)

func addSym(t *testing.T, idx *graph.Index, lang ast.Language, file, name string, kind ast.SymbolKind, start, end int) {
	t.Helper()
	require.NoError(t, idx.Add(lang, ast.Symbol{
		File: file, Name: name, Kind: kind,
		ByteStart: start, ByteEnd: end, LineStart: 1, LineEnd: 1,
		Visibility: ast.VisibilityPublic,
	}))
}

func TestResolveUniqueByName(t *testing.T) {
	idx := graph.NewIndex()
	addSym(t, idx, ast.LangRust, "a.rs", "greet", ast.KindFunction, 0, 40)

	sym, err := Resolve(idx, Query{Name: "greet"})
	require.NoError(t, err)
	assert.Equal(t, "a.rs", sym.File)
	assert.Equal(t, 0, sym.ByteStart)
	assert.Equal(t, 40, sym.ByteEnd)
}

func TestResolveAmbiguousAcrossFiles(t *testing.T) {
	idx := graph.NewIndex()
	addSym(t, idx, ast.LangRust, "a.rs", "foo", ast.KindFunction, 0, 20)
	addSym(t, idx, ast.LangRust, "b.rs", "foo", ast.KindFunction, 0, 25)

	_, err := Resolve(idx, Query{Name: "foo"})
	var ambiguous *AmbiguousSymbolError
	require.True(t, errors.As(err, &ambiguous))
	require.Len(t, ambiguous.Candidates, 2)
	files := []string{ambiguous.Candidates[0].File, ambiguous.Candidates[1].File}
	assert.Contains(t, files, "a.rs")
	assert.Contains(t, files, "b.rs")

	// The file restriction resolves uniquely.
	sym, err := Resolve(idx, Query{Name: "foo", File: "a.rs"})
	require.NoError(t, err)
	assert.Equal(t, "a.rs", sym.File)
}

func TestResolveNotFoundCarriesHint(t *testing.T) {
	idx := graph.NewIndex()

	_, err := Resolve(idx, Query{Name: "missing"})
	var notFound *SymbolNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Contains(t, notFound.Hint, "--file")

	_, err = Resolve(idx, Query{Name: "missing", File: "a.rs"})
	require.True(t, errors.As(err, &notFound))
	assert.Contains(t, notFound.Hint, "a.rs")
}

func TestResolveKindRestriction(t *testing.T) {
	idx := graph.NewIndex()
	addSym(t, idx, ast.LangRust, "a.rs", "Point", ast.KindStruct, 0, 30)
	addSym(t, idx, ast.LangRust, "a.rs", "Point", ast.KindImpl, 40, 90)

	_, err := Resolve(idx, Query{Name: "Point", File: "a.rs"})
	var ambiguous *AmbiguousSymbolError
	require.True(t, errors.As(err, &ambiguous))

	sym, err := Resolve(idx, Query{Name: "Point", File: "a.rs", Kind: ast.KindStruct})
	require.NoError(t, err)
	assert.Equal(t, ast.KindStruct, sym.Kind)
}

func TestResolveOverloadsSurfaceAsAmbiguity(t *testing.T) {
	idx := graph.NewIndex()
	addSym(t, idx, ast.LangJava, "Main.java", "run", ast.KindMethod, 0, 20)
	addSym(t, idx, ast.LangJava, "Main.java", "run", ast.KindMethod, 30, 55)

	_, err := Resolve(idx, Query{Name: "run", File: "Main.java", Kind: ast.KindMethod})
	var ambiguous *AmbiguousSymbolError
	require.True(t, errors.As(err, &ambiguous))
	assert.Len(t, ambiguous.Candidates, 2)
}

func TestModulePathForFile(t *testing.T) {
	tests := []struct {
		rel  string
		want string
	}{
		{"src/lib.rs", "crate"},
		{"src/main.rs", "crate"},
		{"src/util.rs", "crate::util"},
		{"src/util/helpers.rs", "crate::util::helpers"},
		{"src/util/mod.rs", "crate::util"},
		{"a.rs", "crate::a"},
	}

	for _, tt := range tests {
		got, err := modulePathForFile("/ws", "/ws/"+tt.rel)
		require.NoError(t, err, tt.rel)
		assert.Equal(t, tt.want, got, tt.rel)
	}
}

func TestImportPathMatches(t *testing.T) {
	assert.True(t, importPathMatches("crate::utils", "crate::utils"))
	assert.True(t, importPathMatches("crate::utils", "crate::utils::helpers"))
	assert.True(t, importPathMatches("crate::utils::helper", "crate::utils"))
	assert.False(t, importPathMatches("crate::utils", "crate::other"))
	assert.False(t, importPathMatches("crate::utilities", "crate::utils"))
}

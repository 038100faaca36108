// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want Language
	}{
		{"main.rs", LangRust},
		{"script.py", LangPython},
		{"prog.c", LangC},
		{"prog.h", LangC},
		{"main.cpp", LangCpp},
		{"Main.java", LangJava},
		{"app.js", LangJavaScript},
		{"app.ts", LangTypeScript},
	}

	for _, tt := range tests {
		got, err := DetectLanguage(tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}

	_, err := DetectLanguage("file.txt")
	assert.True(t, errors.Is(err, ErrUnknownLanguage))
}

func findSymbol(t *testing.T, result *ParseResult, name string, kind SymbolKind) Symbol {
	t.Helper()
	for _, s := range result.Symbols {
		if s.Name == name && s.Kind == kind {
			return s
		}
	}
	t.Fatalf("symbol %s (%s) not found in %v", name, kind, result.Symbols)
	return Symbol{}
}

func TestRustParserSymbols(t *testing.T) {
	source := []byte(`pub fn greet(name: &str) -> String { format!("Hello, {}!", name) }

struct Point { x: i32, y: i32 }

pub enum Color { Red, Green }

impl Point {
    pub fn norm(&self) -> i32 { self.x }
}

trait Render { fn render(&self); }

mod util {}

type Pair = (i32, i32);
`)

	result, err := NewRustParser().Parse(context.Background(), source, "lib.rs")
	require.NoError(t, err)
	require.Empty(t, result.Errors)

	greet := findSymbol(t, result, "greet", KindFunction)
	assert.Equal(t, 0, greet.ByteStart)
	assert.Equal(t, 1, greet.LineStart)
	assert.Equal(t, VisibilityPublic, greet.Visibility)
	assert.Equal(t, "pub fn greet", string(source[greet.ByteStart:greet.ByteStart+12]))

	point := findSymbol(t, result, "Point", KindStruct)
	assert.Equal(t, VisibilityPrivate, point.Visibility)

	findSymbol(t, result, "Color", KindEnum)
	findSymbol(t, result, "Point", KindImpl)
	findSymbol(t, result, "norm", KindMethod)
	findSymbol(t, result, "Render", KindTrait)
	findSymbol(t, result, "util", KindModule)
	findSymbol(t, result, "Pair", KindTypeAlias)
}

func TestRustParserImports(t *testing.T) {
	source := []byte(`use crate::util::helper;
pub use crate::util::helper as aid;
use crate::module::*;
use crate::things::{alpha, beta as b};
`)

	result, err := NewRustParser().Parse(context.Background(), source, "lib.rs")
	require.NoError(t, err)
	require.Len(t, result.Imports, 5)

	plain := result.Imports[0]
	assert.Equal(t, []string{"crate", "util"}, plain.Path)
	assert.Equal(t, []string{"helper"}, plain.ImportedNames)
	assert.False(t, plain.IsReexport)
	assert.Equal(t, "use crate::util::helper;", string(source[plain.ByteStart:plain.ByteEnd]))

	reexport := result.Imports[1]
	assert.True(t, reexport.IsReexport)
	assert.Equal(t, "aid", reexport.Alias)
	assert.Equal(t, []string{"helper"}, reexport.ImportedNames)

	glob := result.Imports[2]
	assert.True(t, glob.IsGlob)
	assert.Equal(t, []string{"crate", "module"}, glob.Path)
	assert.Equal(t, []string{"*"}, glob.ImportedNames)

	alpha := result.Imports[3]
	assert.Equal(t, []string{"crate", "things"}, alpha.Path)
	assert.Equal(t, []string{"alpha"}, alpha.ImportedNames)

	beta := result.Imports[4]
	assert.Equal(t, []string{"beta"}, beta.ImportedNames)
	assert.Equal(t, "b", beta.Alias)
}

func TestRustParserScopedUseListNestedPath(t *testing.T) {
	source := []byte(`use crate::m::{sub::T, U};
`)

	result, err := NewRustParser().Parse(context.Background(), source, "lib.rs")
	require.NoError(t, err)
	require.Len(t, result.Imports, 2)

	nested := result.Imports[0]
	assert.Equal(t, []string{"crate", "m", "sub"}, nested.Path)
	assert.Equal(t, []string{"T"}, nested.ImportedNames)

	plain := result.Imports[1]
	assert.Equal(t, []string{"crate", "m"}, plain.Path)
	assert.Equal(t, []string{"U"}, plain.ImportedNames)
}

func TestRustParserScopes(t *testing.T) {
	source := []byte(`fn helper() -> i32 { 42 }

fn main() {
    let x = helper();
    {
        fn helper() -> i32 { 99 }
        let y = helper();
    }
    let w = helper();
}
`)

	result, err := NewRustParser().Parse(context.Background(), source, "lib.rs")
	require.NoError(t, err)
	require.NotNil(t, result.Scopes)

	// Occurrences of "helper()": 1 top-level fn, 2 first call in main,
	// 3 nested fn, 4 call inside the block, 5 call after the block.

	// The call after the nested fn, inside the block, is shadowed.
	shadowedCall := indexOfNth(string(source), "helper()", 4)
	require.Positive(t, shadowedCall)
	assert.True(t, result.Scopes.IsShadowedAt("helper", shadowedCall))

	// The first call in main is not shadowed.
	firstCall := indexOfNth(string(source), "helper()", 2)
	assert.False(t, result.Scopes.IsShadowedAt("helper", firstCall))

	// The call after the block closes is not shadowed.
	lastCall := indexOfNth(string(source), "helper()", 5)
	assert.False(t, result.Scopes.IsShadowedAt("helper", lastCall))
}

// indexOfNth returns the byte offset of the nth occurrence (1-based) of
// sub within s, or -1.
func indexOfNth(s, sub string, n int) int {
	offset := 0
	for i := 0; i < n; i++ {
		idx := indexFrom(s, sub, offset)
		if idx < 0 {
			return -1
		}
		if i == n-1 {
			return idx
		}
		offset = idx + len(sub)
	}
	return -1
}

func indexFrom(s, sub string, from int) int {
	for i := from; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestRustParserTolerantOnSyntaxErrors(t *testing.T) {
	source := []byte("fn broken( {\n\nfn ok() {}\n")

	result, err := NewRustParser().Parse(context.Background(), source, "lib.rs")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Errors)
}

func TestReparseContentGate(t *testing.T) {
	err := ReparseContent(context.Background(), []byte("fn ok() {}"), "lib.rs", LangRust)
	require.NoError(t, err)

	err = ReparseContent(context.Background(), []byte("fn broken("), "lib.rs", LangRust)
	var pv *ParseValidationError
	require.True(t, errors.As(err, &pv))
	assert.Equal(t, "lib.rs", pv.File)
	assert.Equal(t, "ParseValidationFailed", pv.ErrorKind())
}

func TestPythonParserSymbols(t *testing.T) {
	source := []byte(`class Greeter:
    def greet(self):
        pass

def main():
    pass
`)

	result, err := NewPythonParser().Parse(context.Background(), source, "app.py")
	require.NoError(t, err)

	findSymbol(t, result, "Greeter", KindClass)
	findSymbol(t, result, "greet", KindMethod)
	findSymbol(t, result, "main", KindFunction)
}

func TestJavaParserSymbols(t *testing.T) {
	source := []byte(`public class Main {
    private int count;

    public Main() {}

    public void run() {}

    public void run(int times) {}
}

interface Runner { void go(); }
`)

	result, err := NewJavaParser().Parse(context.Background(), source, "Main.java")
	require.NoError(t, err)

	findSymbol(t, result, "Main", KindClass)
	findSymbol(t, result, "Main", KindConstructor)
	findSymbol(t, result, "Runner", KindInterface)
	findSymbol(t, result, "count", KindVariable)

	// Overloads both survive extraction.
	var runs int
	for _, s := range result.Symbols {
		if s.Name == "run" && s.Kind == KindMethod {
			runs++
		}
	}
	assert.Equal(t, 2, runs)
}

func TestTypeScriptParserSymbols(t *testing.T) {
	source := []byte(`interface Shape { area(): number; }

type Pair = [number, number];

enum Color { Red, Green }

class Circle {
    constructor(r: number) {}
    area(): number { return 0; }
}

function make(): Circle { return new Circle(1); }

const scale = (x: number) => x * 2;
`)

	result, err := NewTypeScriptParser().Parse(context.Background(), source, "shapes.ts")
	require.NoError(t, err)

	findSymbol(t, result, "Shape", KindInterface)
	findSymbol(t, result, "Pair", KindTypeAlias)
	findSymbol(t, result, "Color", KindEnum)
	findSymbol(t, result, "Circle", KindClass)
	findSymbol(t, result, "constructor", KindConstructor)
	findSymbol(t, result, "area", KindMethod)
	findSymbol(t, result, "make", KindFunction)
	findSymbol(t, result, "scale", KindFunction)
}

func TestCParserSymbols(t *testing.T) {
	source := []byte(`struct point { int x; int y; };

enum color { RED, GREEN };

typedef int pair[2];

int add(int a, int b) { return a + b; }
`)

	result, err := NewCParser().Parse(context.Background(), source, "prog.c")
	require.NoError(t, err)

	findSymbol(t, result, "point", KindStruct)
	findSymbol(t, result, "color", KindEnum)
	findSymbol(t, result, "add", KindFunction)
}

func TestCppParserSymbols(t *testing.T) {
	source := []byte(`namespace geo {

class Circle {
public:
    Circle(double r) : r_(r) {}
    double area() const { return r_; }
private:
    double r_;
};

double twice(double x) { return 2 * x; }
double twice(int x) { return 2.0 * x; }

}
`)

	result, err := NewCppParser().Parse(context.Background(), source, "geo.cpp")
	require.NoError(t, err)

	findSymbol(t, result, "geo", KindModule)
	findSymbol(t, result, "Circle", KindClass)
	findSymbol(t, result, "Circle", KindConstructor)
	findSymbol(t, result, "area", KindMethod)

	var overloads int
	for _, s := range result.Symbols {
		if s.Name == "twice" && s.Kind == KindFunction {
			overloads++
		}
	}
	assert.Equal(t, 2, overloads)
}

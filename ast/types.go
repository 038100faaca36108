// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast provides tree-sitter based parsing and symbol extraction
// for the languages splice can refactor.
//
// Each supported language has a Parser implementation that walks the
// concrete syntax tree and emits Symbols with exact byte spans. The
// Registry dispatches on a Language tag derived from the file extension
// (or a caller override) and also exposes the post-edit re-parse used as
// the syntax validation gate.
//
// Thread Safety: Parsers create a fresh tree-sitter parser per call and
// are safe for concurrent use.
package ast

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Language identifies a source language supported by splice.
type Language string

// Supported languages.
const (
	LangRust       Language = "rust"
	LangPython     Language = "python"
	LangC          Language = "c"
	LangCpp        Language = "cpp"
	LangJava       Language = "java"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
)

// ErrUnknownLanguage indicates a file extension or language tag that no
// registered parser handles.
var ErrUnknownLanguage = errors.New("unknown language")

// DetectLanguage maps a file path to its Language by extension.
//
// Returns ErrUnknownLanguage for extensions outside the supported set.
func DetectLanguage(path string) (Language, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".rs":
		return LangRust, nil
	case ".py", ".pyi":
		return LangPython, nil
	case ".c", ".h":
		return LangC, nil
	case ".cpp", ".cc", ".cxx", ".hpp", ".hh", ".hxx":
		return LangCpp, nil
	case ".java":
		return LangJava, nil
	case ".js", ".mjs", ".cjs", ".jsx":
		return LangJavaScript, nil
	case ".ts", ".tsx", ".mts", ".cts":
		return LangTypeScript, nil
	default:
		return "", fmt.Errorf("%w: cannot detect language for %q", ErrUnknownLanguage, path)
	}
}

// ParseLanguage converts a user-supplied language string into a Language.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(s) {
	case "rust":
		return LangRust, nil
	case "python":
		return LangPython, nil
	case "c":
		return LangC, nil
	case "cpp", "c++":
		return LangCpp, nil
	case "java":
		return LangJava, nil
	case "javascript", "js":
		return LangJavaScript, nil
	case "typescript", "ts":
		return LangTypeScript, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, s)
	}
}

// SymbolKind classifies a symbol. The set is closed; parsers map their
// grammar's node kinds onto it via fixed tables.
type SymbolKind string

// Symbol kinds.
const (
	KindFunction    SymbolKind = "function"
	KindMethod      SymbolKind = "method"
	KindClass       SymbolKind = "class"
	KindStruct      SymbolKind = "struct"
	KindInterface   SymbolKind = "interface"
	KindEnum        SymbolKind = "enum"
	KindTrait       SymbolKind = "trait"
	KindImpl        SymbolKind = "impl"
	KindModule      SymbolKind = "module"
	KindVariable    SymbolKind = "variable"
	KindConstant    SymbolKind = "constant"
	KindConstructor SymbolKind = "constructor"
	KindTypeAlias   SymbolKind = "type_alias"
)

// ParseKind converts a user-supplied kind string into a SymbolKind.
func ParseKind(s string) (SymbolKind, error) {
	switch strings.ToLower(s) {
	case "function":
		return KindFunction, nil
	case "method":
		return KindMethod, nil
	case "class":
		return KindClass, nil
	case "struct":
		return KindStruct, nil
	case "interface":
		return KindInterface, nil
	case "enum":
		return KindEnum, nil
	case "trait":
		return KindTrait, nil
	case "impl":
		return KindImpl, nil
	case "module":
		return KindModule, nil
	case "variable":
		return KindVariable, nil
	case "constant", "const":
		return KindConstant, nil
	case "constructor":
		return KindConstructor, nil
	case "type_alias", "type-alias", "typealias":
		return KindTypeAlias, nil
	default:
		return "", fmt.Errorf("unknown symbol kind %q", s)
	}
}

// Visibility captures whether a symbol is reachable from other files.
// Only the Rust parser distinguishes this today; other languages default
// to public.
type Visibility string

// Visibility levels.
const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Symbol is a named declaration with an exact byte span.
//
// Line numbers are 1-based; columns are 0-based byte offsets within the
// line. Symbols are immutable within an operation.
type Symbol struct {
	// File is the path of the defining source file.
	File string

	// Name is the local symbol name (e.g. "greet").
	Name string

	// Kind classifies the declaration.
	Kind SymbolKind

	// ByteStart and ByteEnd delimit the half-open span [start, end).
	ByteStart int
	ByteEnd   int

	// LineStart and LineEnd are 1-based.
	LineStart int
	LineEnd   int

	// ColStart and ColEnd are 0-based byte columns.
	ColStart int
	ColEnd   int

	// Visibility is public unless the language parser proves otherwise.
	Visibility Visibility

	// ModulePath is the Rust module path of the defining file
	// (e.g. "crate::util::helpers"). Empty for other languages.
	ModulePath string
}

// Import records one import statement. Only the Rust parser populates
// these today; they feed the cross-file reference finder.
type Import struct {
	// File is the importing file.
	File string

	// Path holds the module path segments, root first
	// (e.g. ["crate", "util"] for `use crate::util::helper`).
	Path []string

	// ImportedNames lists the names bound by this import. A glob import
	// carries the single entry "*".
	ImportedNames []string

	// Alias is the local binding name for `use p::x as y` imports;
	// empty otherwise.
	Alias string

	// IsGlob marks wildcard imports.
	IsGlob bool

	// IsReexport marks `pub use` declarations.
	IsReexport bool

	// ByteStart and ByteEnd span the whole use declaration.
	ByteStart int
	ByteEnd   int
}

// ModulePath renders the import's path segments as a "::" joined string.
func (i Import) ModulePath() string {
	return strings.Join(i.Path, "::")
}

// Binding is a name bound inside a Scope, with the byte offset of its
// declaration. Shadowing takes effect from that offset onward.
type Binding struct {
	Name       string
	DeclaredAt int
}

// Scope is a lexical region that can bind names locally. Scopes nest;
// inner bindings shadow outer ones.
type Scope struct {
	// Start and End delimit the region [start, end).
	Start int
	End   int

	// Bindings are the names declared in this scope.
	Bindings []Binding

	// Parent is the index of the enclosing scope in the owning ScopeMap,
	// or -1 for the file scope.
	Parent int
}

// ScopeMap holds every scope of one file and answers shadowing queries.
type ScopeMap struct {
	Scopes []Scope
}

// Add appends a scope and returns its index.
func (m *ScopeMap) Add(start, end, parent int) int {
	m.Scopes = append(m.Scopes, Scope{Start: start, End: end, Parent: parent})
	return len(m.Scopes) - 1
}

// Bind records a binding in the scope at idx.
func (m *ScopeMap) Bind(idx int, name string, declaredAt int) {
	if idx < 0 || idx >= len(m.Scopes) {
		return
	}
	s := &m.Scopes[idx]
	s.Bindings = append(s.Bindings, Binding{Name: name, DeclaredAt: declaredAt})
}

// IsShadowedAt reports whether a reference to name at byte offset is
// hidden by a local binding: some scope containing the offset binds the
// name at a declaration position at or before the offset.
func (m *ScopeMap) IsShadowedAt(name string, offset int) bool {
	for _, s := range m.Scopes {
		if offset < s.Start || offset >= s.End {
			continue
		}
		for _, b := range s.Bindings {
			if b.Name == name && offset >= b.DeclaredAt {
				return true
			}
		}
	}
	return false
}

// ParseResult is the output of one Parse call.
//
// Pre-edit parses are best-effort: syntax errors are recorded in Errors
// and whatever symbols are recoverable are still returned.
type ParseResult struct {
	// File is the parsed path.
	File string

	// Language is the grammar used.
	Language Language

	// Hash is the SHA-256 hex digest of the parsed bytes.
	Hash string

	// Symbols are the extracted declarations, in source order.
	Symbols []Symbol

	// Imports are the extracted import statements (Rust only).
	Imports []Import

	// Scopes is the lexical scope map (Rust only).
	Scopes *ScopeMap

	// Errors lists human-readable descriptions of syntax errors found
	// during a tolerant parse.
	Errors []string
}

// ParseValidationError is the syntax gate failure: a file no longer
// parses cleanly after an edit.
type ParseValidationError struct {
	// File is the failing path.
	File string

	// Message describes the first error node.
	Message string

	// Line and Column locate the first error node (1-based line,
	// 0-based byte column); zero when unknown.
	Line   int
	Column int
}

func (e *ParseValidationError) Error() string {
	return fmt.Sprintf("parse validation failed: file %q - %s", e.File, e.Message)
}

// ErrorKind returns the stable kind tag for CLI payloads.
func (e *ParseValidationError) ErrorKind() string { return "ParseValidationFailed" }

// FilePath returns the file the error refers to.
func (e *ParseValidationError) FilePath() string { return e.File }

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
	"fmt"
	"log/slog"
	"os"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/oldnordic/splice/span"
)

// DefaultMaxFileSize is the largest file a parser will accept (10MB).
const DefaultMaxFileSize = 10 * 1024 * 1024

// WarnFileSize is the size above which a parse logs a warning (1MB).
const WarnFileSize = 1024 * 1024

// Parser extracts symbols from one language's source code.
//
// Implementations create their own tree-sitter parser per call and are
// safe for concurrent use.
type Parser interface {
	// Parse extracts symbols (and, where the language supports it,
	// imports and scopes) from content. Syntax errors do not fail the
	// call; they are recorded in ParseResult.Errors.
	Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error)

	// Language returns the canonical language tag for this parser.
	Language() Language
}

// Registry dispatches parsing by language tag.
//
// Thread Safety: Registry is immutable after construction and safe for
// concurrent use.
type Registry struct {
	parsers map[Language]Parser
}

// NewRegistry returns a Registry with every supported language wired.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[Language]Parser)}
	for _, p := range []Parser{
		NewRustParser(),
		NewPythonParser(),
		NewCParser(),
		NewCppParser(),
		NewJavaParser(),
		NewJavaScriptParser(),
		NewTypeScriptParser(),
	} {
		r.parsers[p.Language()] = p
	}
	return r
}

// ForLanguage returns the parser for lang.
func (r *Registry) ForLanguage(lang Language) (Parser, error) {
	p, ok := r.parsers[lang]
	if !ok {
		return nil, fmt.Errorf("%w: no parser registered for %q", ErrUnknownLanguage, lang)
	}
	return p, nil
}

// ParseFile reads and parses path. When lang is empty the language is
// detected from the file extension.
func (r *Registry) ParseFile(ctx context.Context, path string, lang Language) (*ParseResult, error) {
	if lang == "" {
		detected, err := DetectLanguage(path)
		if err != nil {
			return nil, err
		}
		lang = detected
	}

	p, err := r.ForLanguage(lang)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return p.Parse(ctx, content, path)
}

// Reparse is the syntax gate: it re-reads path and parses it, failing
// with *ParseValidationError if the tree contains any ERROR or MISSING
// node. Unlike Parse, error tolerance is off.
func (r *Registry) Reparse(ctx context.Context, path string, lang Language) error {
	if lang == "" {
		detected, err := DetectLanguage(path)
		if err != nil {
			return err
		}
		lang = detected
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	return ReparseContent(ctx, content, path, lang)
}

// ReparseContent runs the syntax gate against in-memory bytes. Used by
// preview mode, where candidate content never reaches the real path.
func ReparseContent(ctx context.Context, content []byte, path string, lang Language) error {
	tsLang := treeSitterLanguage(lang)
	if tsLang == nil {
		return fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(tsLang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return &ParseValidationError{File: path, Message: fmt.Sprintf("parse failed: %v", err)}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return &ParseValidationError{File: path, Message: "parse failed - no tree returned"}
	}

	if errNode := findFirstError(root); errNode != nil {
		line := int(errNode.StartPoint().Row) + 1
		col := int(errNode.StartPoint().Column)
		msg := "syntax error"
		if errNode.IsMissing() {
			msg = fmt.Sprintf("missing %s", errNode.Type())
		}
		return &ParseValidationError{
			File:    path,
			Message: fmt.Sprintf("%s at line %d", msg, line),
			Line:    line,
			Column:  col,
		}
	}

	return nil
}

// treeSitterLanguage maps a Language tag to its vendored grammar.
func treeSitterLanguage(lang Language) *sitter.Language {
	switch lang {
	case LangRust:
		return rust.GetLanguage()
	case LangPython:
		return python.GetLanguage()
	case LangC:
		return c.GetLanguage()
	case LangCpp:
		return cpp.GetLanguage()
	case LangJava:
		return java.GetLanguage()
	case LangJavaScript:
		return javascript.GetLanguage()
	case LangTypeScript:
		return typescript.GetLanguage()
	default:
		return nil
	}
}

// parseTree parses content with the grammar for lang and performs the
// shared validation all parsers need. The caller owns the returned tree.
func parseTree(ctx context.Context, content []byte, filePath string, lang Language) (*sitter.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if len(content) > DefaultMaxFileSize {
		return nil, fmt.Errorf("file %s too large: %d bytes exceeds limit %d", filePath, len(content), DefaultMaxFileSize)
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		return nil, fmt.Errorf("file %s is not valid UTF-8", filePath)
	}

	tsLang := treeSitterLanguage(lang)
	if tsLang == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(tsLang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse of %s failed: %w", filePath, err)
	}
	if tree.RootNode() == nil {
		tree.Close()
		return nil, fmt.Errorf("tree-sitter parse of %s returned no tree", filePath)
	}

	return tree, nil
}

// newResult builds the common ParseResult envelope, recording a tolerant
// syntax-error note when the tree has errors.
func newResult(root *sitter.Node, content []byte, filePath string, lang Language) *ParseResult {
	result := &ParseResult{
		File:     filePath,
		Language: lang,
		Hash:     span.Hash(content),
		Symbols:  make([]Symbol, 0),
	}
	if root.HasError() {
		result.Errors = append(result.Errors, "source contains syntax errors")
	}
	return result
}

// findFirstError returns the first ERROR or MISSING node in the tree,
// or nil when the tree is clean.
func findFirstError(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if found := findFirstError(node.Child(i)); found != nil {
			return found
		}
	}
	return nil
}

// nodeSymbol fills the positional fields of a Symbol from a node.
func nodeSymbol(node *sitter.Node, name string, kind SymbolKind, filePath string) Symbol {
	return Symbol{
		File:       filePath,
		Name:       name,
		Kind:       kind,
		ByteStart:  int(node.StartByte()),
		ByteEnd:    int(node.EndByte()),
		LineStart:  int(node.StartPoint().Row) + 1,
		LineEnd:    int(node.EndPoint().Row) + 1,
		ColStart:   int(node.StartPoint().Column),
		ColEnd:     int(node.EndPoint().Column),
		Visibility: VisibilityPublic,
	}
}

// nodeText returns the source text of node.
func nodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if int(end) > len(content) || start > end {
		return ""
	}
	return string(content[start:end])
}

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
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
)

// RustParser implements Parser for Rust source files.
//
// Beyond symbol extraction it collects the two inputs the Rust reference
// finder needs: every `use` / `pub use` declaration, and a lexical scope
// map recording locally bound names for shadow filtering.
//
// Thread Safety: RustParser is stateless and safe for concurrent use.
type RustParser struct{}

// NewRustParser creates a RustParser.
func NewRustParser() *RustParser {
	return &RustParser{}
}

// Language returns "rust".
func (p *RustParser) Language() Language { return LangRust }

// Parse extracts symbols, imports, and scopes from Rust source.
//
// The parse is error-tolerant: files with syntax errors yield whatever
// declarations are recoverable, with a note appended to Errors.
func (p *RustParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	start := time.Now()

	tree, err := parseTree(ctx, content, filePath, LangRust)
	if err != nil {
		recordParse(ctx, LangRust, time.Since(start), 0, false)
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	result := newResult(root, content, filePath, LangRust)

	p.extractSymbols(root, content, filePath, result, false)
	p.extractImports(root, content, filePath, result)
	result.Scopes = p.buildScopeMap(root, content)

	recordParse(ctx, LangRust, time.Since(start), len(result.Symbols), true)
	return result, nil
}

// rustItemKinds is the closed node-kind table for Rust declarations.
var rustItemKinds = map[string]SymbolKind{
	"function_item": KindFunction,
	"struct_item":   KindStruct,
	"enum_item":     KindEnum,
	"impl_item":     KindImpl,
	"mod_item":      KindModule,
	"trait_item":    KindTrait,
	"type_item":     KindTypeAlias,
	"const_item":    KindConstant,
	"static_item":   KindVariable,
}

// extractSymbols walks the tree collecting declared items. inImpl flips
// function_item to method inside impl blocks.
func (p *RustParser) extractSymbols(node *sitter.Node, content []byte, filePath string, result *ParseResult, inImpl bool) {
	kind, ok := rustItemKinds[node.Type()]
	if ok {
		var name string
		switch node.Type() {
		case "impl_item":
			// Both inherent and trait impls name the symbol after the
			// implemented type, so `impl Foo` and `impl Trait for Foo`
			// each produce a symbol "Foo".
			name = nodeText(node.ChildByFieldName("type"), content)
		default:
			name = nodeText(node.ChildByFieldName("name"), content)
		}

		if name != "" {
			if kind == KindFunction && inImpl {
				kind = KindMethod
			}
			sym := nodeSymbol(node, name, kind, filePath)
			sym.Visibility = rustVisibility(node, content)
			result.Symbols = append(result.Symbols, sym)
		}
	}

	childInImpl := inImpl || node.Type() == "impl_item"
	for i := 0; i < int(node.ChildCount()); i++ {
		p.extractSymbols(node.Child(i), content, filePath, result, childInImpl)
	}
}

// rustVisibility reports public for items carrying a visibility modifier.
func rustVisibility(node *sitter.Node, content []byte) Visibility {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "visibility_modifier" && strings.HasPrefix(nodeText(child, content), "pub") {
			return VisibilityPublic
		}
	}
	return VisibilityPrivate
}

// extractImports collects every use declaration in the file.
func (p *RustParser) extractImports(node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	if node.Type() == "use_declaration" {
		result.Imports = append(result.Imports, p.useDeclarations(node, content, filePath)...)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		p.extractImports(node.Child(i), content, filePath, result)
	}
}

// useDeclarations converts one use_declaration into Import facts.
func (p *RustParser) useDeclarations(node *sitter.Node, content []byte, filePath string) []Import {
	isReexport := false
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "visibility_modifier" {
			isReexport = true
			break
		}
	}

	arg := node.ChildByFieldName("argument")
	if arg == nil {
		return nil
	}

	base := Import{
		File:       filePath,
		IsReexport: isReexport,
		ByteStart:  int(node.StartByte()),
		ByteEnd:    int(node.EndByte()),
	}

	switch arg.Type() {
	case "scoped_identifier":
		// use crate::foo::bar;
		path, name, ok := scopedPath(arg, content)
		if !ok {
			return nil
		}
		imp := base
		imp.Path = path
		imp.ImportedNames = []string{name}
		return []Import{imp}

	case "identifier", "crate", "self", "super":
		// use foo;
		imp := base
		imp.ImportedNames = []string{nodeText(arg, content)}
		return []Import{imp}

	case "use_wildcard":
		// use crate::module::*;
		var scoped *sitter.Node
		for i := 0; i < int(arg.ChildCount()); i++ {
			if arg.Child(i).Type() == "scoped_identifier" || arg.Child(i).Type() == "identifier" {
				scoped = arg.Child(i)
				break
			}
		}
		if scoped == nil {
			return nil
		}
		imp := base
		if scoped.Type() == "scoped_identifier" {
			path, name, ok := scopedPath(scoped, content)
			if !ok {
				return nil
			}
			imp.Path = append(path, name)
		} else {
			imp.Path = []string{nodeText(scoped, content)}
		}
		imp.ImportedNames = []string{"*"}
		imp.IsGlob = true
		return []Import{imp}

	case "scoped_use_list":
		// use crate::module::{foo, bar as baz};
		pathNode := arg.ChildByFieldName("path")
		listNode := arg.ChildByFieldName("list")
		if pathNode == nil || listNode == nil {
			return nil
		}

		var modPath []string
		if pathNode.Type() == "scoped_identifier" {
			path, name, ok := scopedPath(pathNode, content)
			if !ok {
				return nil
			}
			modPath = append(path, name)
		} else {
			modPath = []string{nodeText(pathNode, content)}
		}

		var imports []Import
		for i := 0; i < int(listNode.ChildCount()); i++ {
			child := listNode.Child(i)
			switch child.Type() {
			case "identifier", "self":
				imp := base
				imp.Path = modPath
				imp.ImportedNames = []string{nodeText(child, content)}
				imports = append(imports, imp)
			case "scoped_identifier":
				// use crate::m::{sub::T, U}; the nested segments extend
				// the module path.
				subPath, subName, ok := scopedPath(child, content)
				if !ok {
					continue
				}
				imp := base
				imp.Path = append(append([]string{}, modPath...), subPath...)
				imp.ImportedNames = []string{subName}
				imports = append(imports, imp)
			case "use_as_clause":
				pathField := child.ChildByFieldName("path")
				aliasField := child.ChildByFieldName("alias")
				if pathField == nil || aliasField == nil {
					continue
				}
				imp := base
				imp.Path = modPath
				imp.ImportedNames = []string{nodeText(pathField, content)}
				imp.Alias = nodeText(aliasField, content)
				imports = append(imports, imp)
			}
		}
		return imports

	case "use_as_clause":
		// use crate::foo::bar as Baz;
		pathField := arg.ChildByFieldName("path")
		aliasField := arg.ChildByFieldName("alias")
		if pathField == nil || aliasField == nil {
			return nil
		}
		imp := base
		imp.Alias = nodeText(aliasField, content)
		if pathField.Type() == "scoped_identifier" {
			path, name, ok := scopedPath(pathField, content)
			if !ok {
				return nil
			}
			imp.Path = path
			imp.ImportedNames = []string{name}
		} else {
			imp.ImportedNames = []string{nodeText(pathField, content)}
		}
		return []Import{imp}
	}

	return nil
}

// scopedPath splits a scoped_identifier chain into leading path segments
// plus the final name: `crate::foo::bar` -> (["crate","foo"], "bar").
func scopedPath(node *sitter.Node, content []byte) (path []string, name string, ok bool) {
	var segments []string

	current := node
	for current != nil {
		switch current.Type() {
		case "scoped_identifier":
			if nameField := current.ChildByFieldName("name"); nameField != nil {
				segments = append(segments, nodeText(nameField, content))
			}
			current = current.ChildByFieldName("path")
		case "identifier", "crate", "super", "self":
			segments = append(segments, nodeText(current, content))
			current = nil
		default:
			current = nil
		}
	}

	if len(segments) == 0 {
		return nil, "", false
	}

	// Segments were collected leaf-first; reverse to root-first order.
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}

	return segments[:len(segments)-1], segments[len(segments)-1], true
}

// buildScopeMap builds the lexical scope map used for shadow filtering.
//
// One scope per function body, closure, and block. Let declarations and
// match-arm pattern bindings bind into the current scope; nested function
// names shadow their parent scope from the declaration point.
func (p *RustParser) buildScopeMap(root *sitter.Node, content []byte) *ScopeMap {
	m := &ScopeMap{}
	fileScope := m.Add(0, int(root.EndByte()), -1)
	p.buildScopes(root, content, m, fileScope)
	return m
}

func (p *RustParser) buildScopes(node *sitter.Node, content []byte, m *ScopeMap, current int) {
	switch node.Type() {
	case "function_item":
		body := node.ChildByFieldName("body")
		if body == nil {
			break
		}

		// A nested fn shadows its own name in the enclosing scope.
		if current > 0 {
			if name := nodeText(node.ChildByFieldName("name"), content); name != "" {
				m.Bind(current, name, int(node.StartByte()))
			}
		}

		scope := m.Add(int(body.StartByte()), int(body.EndByte()), current)
		if params := node.ChildByFieldName("parameters"); params != nil {
			for _, name := range paramNames(params, content) {
				m.Bind(scope, name, int(body.StartByte()))
			}
		}
		for i := 0; i < int(body.ChildCount()); i++ {
			p.buildScopes(body.Child(i), content, m, scope)
		}
		return

	case "closure_expression":
		scope := m.Add(int(node.StartByte()), int(node.EndByte()), current)
		if params := node.ChildByFieldName("parameters"); params != nil {
			for _, name := range paramNames(params, content) {
				m.Bind(scope, name, int(node.StartByte()))
			}
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			p.buildScopes(node.Child(i), content, m, scope)
		}
		return

	case "block":
		scope := m.Add(int(node.StartByte()), int(node.EndByte()), current)
		for i := 0; i < int(node.ChildCount()); i++ {
			p.buildScopes(node.Child(i), content, m, scope)
		}
		return

	case "let_declaration":
		if pattern := node.ChildByFieldName("pattern"); pattern != nil {
			for _, name := range patternBindings(pattern, content) {
				m.Bind(current, name, int(node.StartByte()))
			}
		}

	case "match_arm":
		if pattern := node.ChildByFieldName("pattern"); pattern != nil {
			for _, name := range patternBindings(pattern, content) {
				m.Bind(current, name, int(node.StartByte()))
			}
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.buildScopes(node.Child(i), content, m, current)
	}
}

// paramNames extracts parameter identifiers from a parameters node.
func paramNames(params *sitter.Node, content []byte) []string {
	var names []string
	for i := 0; i < int(params.ChildCount()); i++ {
		child := params.Child(i)
		if child.Type() != "parameter" && child.Type() != "closure_parameters" {
			if child.Type() == "identifier" {
				names = append(names, nodeText(child, content))
			}
			continue
		}
		if pat := child.ChildByFieldName("pattern"); pat != nil {
			names = append(names, patternBindings(pat, content)...)
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			inner := child.Child(j)
			if inner.Type() == "identifier" {
				names = append(names, nodeText(inner, content))
				break
			}
		}
	}
	return names
}

// patternBindings collects every identifier bound by a pattern,
// recursing through tuple, struct, and reference patterns.
func patternBindings(node *sitter.Node, content []byte) []string {
	if node.Type() == "identifier" {
		return []string{nodeText(node, content)}
	}

	var bindings []string
	for i := 0; i < int(node.ChildCount()); i++ {
		bindings = append(bindings, patternBindings(node.Child(i), content)...)
	}
	return bindings
}

var _ Parser = (*RustParser)(nil)

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
	"time"

	sitter "github.com/smacker/go-tree-sitter"
)

// TypeScriptParser implements Parser for TypeScript source files.
//
// Thread Safety: TypeScriptParser is stateless and safe for concurrent use.
type TypeScriptParser struct{}

// NewTypeScriptParser creates a TypeScriptParser.
func NewTypeScriptParser() *TypeScriptParser {
	return &TypeScriptParser{}
}

// Language returns "typescript".
func (p *TypeScriptParser) Language() Language { return LangTypeScript }

// Parse extracts the JavaScript declaration set plus interfaces, type
// aliases, and enums from TypeScript source.
func (p *TypeScriptParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	start := time.Now()

	tree, err := parseTree(ctx, content, filePath, LangTypeScript)
	if err != nil {
		recordParse(ctx, LangTypeScript, time.Since(start), 0, false)
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	result := newResult(root, content, filePath, LangTypeScript)

	p.walk(root, content, filePath, result)

	recordParse(ctx, LangTypeScript, time.Since(start), len(result.Symbols), true)
	return result, nil
}

func (p *TypeScriptParser) walk(node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	switch node.Type() {
	case "interface_declaration":
		if name := nodeText(node.ChildByFieldName("name"), content); name != "" {
			result.Symbols = append(result.Symbols, nodeSymbol(node, name, KindInterface, filePath))
		}

	case "type_alias_declaration":
		if name := nodeText(node.ChildByFieldName("name"), content); name != "" {
			result.Symbols = append(result.Symbols, nodeSymbol(node, name, KindTypeAlias, filePath))
		}

	case "enum_declaration":
		if name := nodeText(node.ChildByFieldName("name"), content); name != "" {
			result.Symbols = append(result.Symbols, nodeSymbol(node, name, KindEnum, filePath))
		}

	case "internal_module":
		// namespace Foo { ... }
		if name := nodeText(node.ChildByFieldName("name"), content); name != "" {
			result.Symbols = append(result.Symbols, nodeSymbol(node, name, KindModule, filePath))
		}

	default:
		// Shared JS declaration kinds. walkJS recurses itself, so hand
		// off only the current node's classification and keep recursion
		// here.
		walkJSNode(node, content, filePath, result)
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.walk(node.Child(i), content, filePath, result)
	}
}

// walkJSNode classifies a single node using the shared JS rules without
// recursing.
func walkJSNode(node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	switch node.Type() {
	case "function_declaration", "generator_function_declaration":
		if name := nodeText(node.ChildByFieldName("name"), content); name != "" {
			result.Symbols = append(result.Symbols, nodeSymbol(node, name, KindFunction, filePath))
		}

	case "class_declaration":
		if name := nodeText(node.ChildByFieldName("name"), content); name != "" {
			result.Symbols = append(result.Symbols, nodeSymbol(node, name, KindClass, filePath))
		}

	case "method_definition":
		if name := nodeText(node.ChildByFieldName("name"), content); name != "" {
			kind := KindMethod
			if name == "constructor" {
				kind = KindConstructor
			}
			result.Symbols = append(result.Symbols, nodeSymbol(node, name, kind, filePath))
		}

	case "lexical_declaration", "variable_declaration":
		if parent := node.Parent(); parent != nil &&
			parent.Type() != "program" && parent.Type() != "export_statement" {
			return
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child.Type() != "variable_declarator" {
				continue
			}
			name := nodeText(child.ChildByFieldName("name"), content)
			if name == "" {
				continue
			}
			kind := KindVariable
			if value := child.ChildByFieldName("value"); value != nil {
				switch value.Type() {
				case "arrow_function", "function_expression", "function", "generator_function":
					kind = KindFunction
				}
			}
			result.Symbols = append(result.Symbols, nodeSymbol(node, name, kind, filePath))
		}
	}
}

var _ Parser = (*TypeScriptParser)(nil)

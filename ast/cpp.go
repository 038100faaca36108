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

// CppParser implements Parser for C++ source files.
//
// C++ legitimately permits overloading, so several symbols may share a
// (file, name, kind) tuple; the symbol store keeps all candidates and
// the resolver surfaces them as ambiguity.
//
// Thread Safety: CppParser is stateless and safe for concurrent use.
type CppParser struct{}

// NewCppParser creates a CppParser.
func NewCppParser() *CppParser {
	return &CppParser{}
}

// Language returns "cpp".
func (p *CppParser) Language() Language { return LangCpp }

// Parse extracts classes, methods, functions, and type declarations
// from C++ source.
func (p *CppParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	start := time.Now()

	tree, err := parseTree(ctx, content, filePath, LangCpp)
	if err != nil {
		recordParse(ctx, LangCpp, time.Since(start), 0, false)
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	result := newResult(root, content, filePath, LangCpp)

	p.walk(root, content, filePath, result, "")

	recordParse(ctx, LangCpp, time.Since(start), len(result.Symbols), true)
	return result, nil
}

// walk collects declarations. className is non-empty inside a class
// body, turning function definitions into methods (or constructors when
// the name matches the class).
func (p *CppParser) walk(node *sitter.Node, content []byte, filePath string, result *ParseResult, className string) {
	switch node.Type() {
	case "function_definition":
		name := declaratorName(node.ChildByFieldName("declarator"), content)
		if name != "" {
			kind := KindFunction
			if className != "" {
				kind = KindMethod
				if name == className {
					kind = KindConstructor
				}
			}
			result.Symbols = append(result.Symbols, nodeSymbol(node, name, kind, filePath))
		}

	case "class_specifier":
		if node.ChildByFieldName("body") != nil {
			name := nodeText(node.ChildByFieldName("name"), content)
			if name != "" {
				result.Symbols = append(result.Symbols, nodeSymbol(node, name, KindClass, filePath))
				if body := node.ChildByFieldName("body"); body != nil {
					for i := 0; i < int(body.ChildCount()); i++ {
						p.walk(body.Child(i), content, filePath, result, name)
					}
				}
				return
			}
		}

	case "struct_specifier":
		if node.ChildByFieldName("body") != nil {
			if name := nodeText(node.ChildByFieldName("name"), content); name != "" {
				result.Symbols = append(result.Symbols, nodeSymbol(node, name, KindStruct, filePath))
			}
		}

	case "enum_specifier":
		if node.ChildByFieldName("body") != nil {
			if name := nodeText(node.ChildByFieldName("name"), content); name != "" {
				result.Symbols = append(result.Symbols, nodeSymbol(node, name, KindEnum, filePath))
			}
		}

	case "namespace_definition":
		if name := nodeText(node.ChildByFieldName("name"), content); name != "" {
			result.Symbols = append(result.Symbols, nodeSymbol(node, name, KindModule, filePath))
		}

	case "type_definition":
		if name := nodeText(node.ChildByFieldName("declarator"), content); name != "" {
			result.Symbols = append(result.Symbols, nodeSymbol(node, name, KindTypeAlias, filePath))
		}

	case "alias_declaration":
		if name := nodeText(node.ChildByFieldName("name"), content); name != "" {
			result.Symbols = append(result.Symbols, nodeSymbol(node, name, KindTypeAlias, filePath))
		}

	case "template_declaration":
		// Unwrap: the templated entity carries the name.
		for i := 0; i < int(node.ChildCount()); i++ {
			p.walk(node.Child(i), content, filePath, result, className)
		}
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.walk(node.Child(i), content, filePath, result, className)
	}
}

var _ Parser = (*CppParser)(nil)

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

// CParser implements Parser for C source files.
//
// Thread Safety: CParser is stateless and safe for concurrent use.
type CParser struct{}

// NewCParser creates a CParser.
func NewCParser() *CParser {
	return &CParser{}
}

// Language returns "c".
func (p *CParser) Language() Language { return LangC }

// Parse extracts functions, structs, enums, and typedefs from C source.
func (p *CParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	start := time.Now()

	tree, err := parseTree(ctx, content, filePath, LangC)
	if err != nil {
		recordParse(ctx, LangC, time.Since(start), 0, false)
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	result := newResult(root, content, filePath, LangC)

	walkC(root, content, filePath, result)

	recordParse(ctx, LangC, time.Since(start), len(result.Symbols), true)
	return result, nil
}

// walkC handles the node kinds C and C++ share.
func walkC(node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	switch node.Type() {
	case "function_definition":
		if name := declaratorName(node.ChildByFieldName("declarator"), content); name != "" {
			result.Symbols = append(result.Symbols, nodeSymbol(node, name, KindFunction, filePath))
		}

	case "struct_specifier":
		// Only named definitions with a body count; bare `struct foo x;`
		// references have no field list.
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

	case "type_definition":
		if name := nodeText(node.ChildByFieldName("declarator"), content); name != "" {
			result.Symbols = append(result.Symbols, nodeSymbol(node, name, KindTypeAlias, filePath))
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		walkC(node.Child(i), content, filePath, result)
	}
}

// declaratorName digs through declarator wrappers (pointers, parameter
// lists) to the underlying identifier.
func declaratorName(node *sitter.Node, content []byte) string {
	for node != nil {
		switch node.Type() {
		case "identifier", "field_identifier", "destructor_name", "operator_name", "qualified_identifier":
			return nodeText(node, content)
		case "function_declarator", "pointer_declarator", "parenthesized_declarator", "reference_declarator":
			node = node.ChildByFieldName("declarator")
		default:
			return ""
		}
	}
	return ""
}

var _ Parser = (*CParser)(nil)

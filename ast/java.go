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

// JavaParser implements Parser for Java source files.
//
// Java permits method overloading; overload candidates all reach the
// symbol store and surface through the resolver as ambiguity.
//
// Thread Safety: JavaParser is stateless and safe for concurrent use.
type JavaParser struct{}

// NewJavaParser creates a JavaParser.
func NewJavaParser() *JavaParser {
	return &JavaParser{}
}

// Language returns "java".
func (p *JavaParser) Language() Language { return LangJava }

// Parse extracts classes, interfaces, enums, methods, and constructors
// from Java source.
func (p *JavaParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	start := time.Now()

	tree, err := parseTree(ctx, content, filePath, LangJava)
	if err != nil {
		recordParse(ctx, LangJava, time.Since(start), 0, false)
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	result := newResult(root, content, filePath, LangJava)

	p.walk(root, content, filePath, result)

	recordParse(ctx, LangJava, time.Since(start), len(result.Symbols), true)
	return result, nil
}

// javaDeclKinds is the closed node-kind table for Java declarations.
var javaDeclKinds = map[string]SymbolKind{
	"class_declaration":       KindClass,
	"interface_declaration":   KindInterface,
	"enum_declaration":        KindEnum,
	"method_declaration":      KindMethod,
	"constructor_declaration": KindConstructor,
}

func (p *JavaParser) walk(node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	if kind, ok := javaDeclKinds[node.Type()]; ok {
		if name := nodeText(node.ChildByFieldName("name"), content); name != "" {
			result.Symbols = append(result.Symbols, nodeSymbol(node, name, kind, filePath))
		}
	} else if node.Type() == "field_declaration" {
		// field_declaration holds one or more variable_declarators.
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child.Type() != "variable_declarator" {
				continue
			}
			if name := nodeText(child.ChildByFieldName("name"), content); name != "" {
				result.Symbols = append(result.Symbols, nodeSymbol(node, name, KindVariable, filePath))
			}
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.walk(node.Child(i), content, filePath, result)
	}
}

var _ Parser = (*JavaParser)(nil)

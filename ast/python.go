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

// PythonParser implements Parser for Python source files.
//
// Thread Safety: PythonParser is stateless and safe for concurrent use.
type PythonParser struct{}

// NewPythonParser creates a PythonParser.
func NewPythonParser() *PythonParser {
	return &PythonParser{}
}

// Language returns "python".
func (p *PythonParser) Language() Language { return LangPython }

// Parse extracts classes, functions, and methods from Python source.
func (p *PythonParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	start := time.Now()

	tree, err := parseTree(ctx, content, filePath, LangPython)
	if err != nil {
		recordParse(ctx, LangPython, time.Since(start), 0, false)
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	result := newResult(root, content, filePath, LangPython)

	p.walk(root, content, filePath, result, false)

	recordParse(ctx, LangPython, time.Since(start), len(result.Symbols), true)
	return result, nil
}

// walk collects declarations. inClass flips function_definition from
// function to method, matching how the symbol kind table distinguishes
// top-level defs from members.
func (p *PythonParser) walk(node *sitter.Node, content []byte, filePath string, result *ParseResult, inClass bool) {
	switch node.Type() {
	case "class_definition":
		if name := nodeText(node.ChildByFieldName("name"), content); name != "" {
			result.Symbols = append(result.Symbols, nodeSymbol(node, name, KindClass, filePath))
		}
		if body := node.ChildByFieldName("body"); body != nil {
			for i := 0; i < int(body.ChildCount()); i++ {
				p.walk(body.Child(i), content, filePath, result, true)
			}
		}
		return

	case "function_definition":
		if name := nodeText(node.ChildByFieldName("name"), content); name != "" {
			kind := KindFunction
			if inClass {
				kind = KindMethod
			}
			result.Symbols = append(result.Symbols, nodeSymbol(node, name, kind, filePath))
		}
		// Nested defs keep their enclosing classification.
		if body := node.ChildByFieldName("body"); body != nil {
			for i := 0; i < int(body.ChildCount()); i++ {
				p.walk(body.Child(i), content, filePath, result, false)
			}
		}
		return

	case "decorated_definition":
		// The decorated span is the symbol span: deleting a decorated
		// function must take its decorators with it.
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child.Type() != "class_definition" && child.Type() != "function_definition" {
				continue
			}
			if name := nodeText(child.ChildByFieldName("name"), content); name != "" {
				kind := KindClass
				if child.Type() == "function_definition" {
					kind = KindFunction
					if inClass {
						kind = KindMethod
					}
				}
				result.Symbols = append(result.Symbols, nodeSymbol(node, name, kind, filePath))
			}
			if body := child.ChildByFieldName("body"); body != nil {
				for j := 0; j < int(body.ChildCount()); j++ {
					p.walk(body.Child(j), content, filePath, result, child.Type() == "class_definition")
				}
			}
		}
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.walk(node.Child(i), content, filePath, result, inClass)
	}
}

var _ Parser = (*PythonParser)(nil)

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

// JavaScriptParser implements Parser for JavaScript source files.
//
// Thread Safety: JavaScriptParser is stateless and safe for concurrent use.
type JavaScriptParser struct{}

// NewJavaScriptParser creates a JavaScriptParser.
func NewJavaScriptParser() *JavaScriptParser {
	return &JavaScriptParser{}
}

// Language returns "javascript".
func (p *JavaScriptParser) Language() Language { return LangJavaScript }

// Parse extracts functions, classes, methods, and top-level variable
// declarations from JavaScript source.
func (p *JavaScriptParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	start := time.Now()

	tree, err := parseTree(ctx, content, filePath, LangJavaScript)
	if err != nil {
		recordParse(ctx, LangJavaScript, time.Since(start), 0, false)
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	result := newResult(root, content, filePath, LangJavaScript)

	walkJS(root, content, filePath, result)

	recordParse(ctx, LangJavaScript, time.Since(start), len(result.Symbols), true)
	return result, nil
}

// walkJS recursively applies the shared JS declaration rules.
func walkJS(node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	walkJSNode(node, content, filePath, result)
	for i := 0; i < int(node.ChildCount()); i++ {
		walkJS(node.Child(i), content, filePath, result)
	}
}

var _ Parser = (*JavaScriptParser)(nil)

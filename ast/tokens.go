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

	sitter "github.com/smacker/go-tree-sitter"
)

// TokenSpans holds the byte spans of comment and string tokens in one
// file. Pattern replacement uses them to confirm matches land on
// syntactically meaningful positions.
type TokenSpans struct {
	Comments [][2]int
	Strings  [][2]int
}

// InComment reports whether offset falls inside a comment token.
func (t *TokenSpans) InComment(offset int) bool {
	return inSpans(t.Comments, offset)
}

// InString reports whether offset falls inside a string token.
func (t *TokenSpans) InString(offset int) bool {
	return inSpans(t.Strings, offset)
}

func inSpans(spans [][2]int, offset int) bool {
	for _, s := range spans {
		if offset >= s[0] && offset < s[1] {
			return true
		}
	}
	return false
}

// LiteralSpans parses content and collects the spans of every comment
// and string token.
func LiteralSpans(ctx context.Context, content []byte, filePath string, lang Language) (*TokenSpans, error) {
	tree, err := parseTree(ctx, content, filePath, lang)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	spans := &TokenSpans{}
	collectLiterals(tree.RootNode(), spans)
	return spans, nil
}

func collectLiterals(node *sitter.Node, spans *TokenSpans) {
	kind := node.Type()
	s := [2]int{int(node.StartByte()), int(node.EndByte())}

	switch {
	case kind == "comment" || strings.HasSuffix(kind, "_comment"):
		spans.Comments = append(spans.Comments, s)
		return
	case kind == "string" || kind == "string_literal" || kind == "raw_string_literal" ||
		kind == "template_string" || kind == "char_literal" || kind == "string_fragment":
		spans.Strings = append(spans.Strings, s)
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		collectLiterals(node.Child(i), spans)
	}
}

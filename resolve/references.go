// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/oldnordic/splice/ast"
	"github.com/oldnordic/splice/patch"
)

// RefContext classifies where a reference appears.
type RefContext string

// Reference contexts.
const (
	CtxIdentifier   RefContext = "identifier"
	CtxFunctionCall RefContext = "function_call"
	CtxImport       RefContext = "import"
	CtxFieldAccess  RefContext = "field_access"
	CtxTypeRef      RefContext = "type_reference"
)

// Reference is one textual reference to the target symbol.
//
// ByteStart/ByteEnd span the matched identifier or path (the whole use
// declaration for imports). For deletion,
// ReplaceStart/ReplaceEnd span the region a delete removes (the whole
// use declaration for imports, the whole statement for call statements)
// and Sentinel is the replacement text ("" or "()").
type Reference struct {
	File      string
	ByteStart int
	ByteEnd   int
	Line      int
	Column    int
	Context   RefContext

	ReplaceStart int
	ReplaceEnd   int
	Sentinel     string
}

// ReferenceSet is the output of reference discovery for one symbol.
type ReferenceSet struct {
	// References, per file, sorted by ByteStart descending so applying
	// them in order never invalidates later offsets.
	References []Reference

	// Definition is the resolved target symbol.
	Definition ast.Symbol

	// HasGlobAmbiguity is set when a glob import of the target's module
	// was seen somewhere; glob-imported references are not guaranteed.
	HasGlobAmbiguity bool
}

// DeletionBatch converts the reference set plus its definition into one
// atomic batch of deletions.
//
// Sentinel rule: import references and statement-position calls delete
// their whole enclosing declaration/statement; expression-position
// references are replaced by the unit value "()".
func (s *ReferenceSet) DeletionBatch() patch.Batch {
	var batch patch.Batch
	for _, r := range s.References {
		batch.Replacements = append(batch.Replacements, patch.SpanReplacement{
			File:       r.File,
			ByteStart:  r.ReplaceStart,
			ByteEnd:    r.ReplaceEnd,
			NewContent: r.Sentinel,
		})
	}
	batch.Replacements = append(batch.Replacements, patch.SpanReplacement{
		File:      s.Definition.File,
		ByteStart: s.Definition.ByteStart,
		ByteEnd:   s.Definition.ByteEnd,
	})
	return batch
}

// reexport records one `pub use` forwarding of a symbol.
type reexport struct {
	// reexportingModule is the module that re-exports the symbol.
	reexportingModule string

	// name is the outward-facing name (the alias when one is declared).
	name string
}

// FindRustReferences discovers every tracked reference to the named
// symbol defined in file.
//
// Same-file references are collected from identifier, scoped-path, and
// method-call positions, minus declarations, shadowed sites, and the
// definition itself. When the definition is public, every .rs file under
// the workspace root that imports the symbol - directly or through a
// single-hop pub use chain - is scanned by the same rules, with import
// aliases substituting for the name. Fully-qualified paths that do not
// pass through an import, and macro-generated text, are not tracked.
func FindRustReferences(ctx context.Context, file, name string, kind ast.SymbolKind) (*ReferenceSet, error) {
	source, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}

	parser := ast.NewRustParser()
	parsed, err := parser.Parse(ctx, source, file)
	if err != nil {
		return nil, err
	}

	var target *ast.Symbol
	for i, s := range parsed.Symbols {
		if s.Name == name && (kind == "" || s.Kind == kind) {
			target = &parsed.Symbols[i]
			break
		}
	}
	if target == nil {
		return nil, &SymbolNotFoundError{
			Name: name,
			File: file,
			Hint: fmt.Sprintf("ensure %q exists in %s or adjust --symbol", name, file),
		}
	}

	set := &ReferenceSet{Definition: *target}

	// Same-file references.
	sameFile, err := referencesInFile(ctx, source, parsed.Scopes, parsed.Imports, file, name, target.Kind)
	if err != nil {
		return nil, err
	}
	for _, r := range sameFile {
		// Drop anything inside the definition span (the declaration and
		// its body reference themselves freely).
		if r.ByteStart >= target.ByteStart && r.ByteEnd <= target.ByteEnd {
			continue
		}
		set.References = append(set.References, r)
	}

	// Cross-file references, public symbols only.
	if target.Visibility == ast.VisibilityPublic {
		crossFile, hasGlob, err := crossFileReferences(ctx, file, name, target.Kind)
		if err != nil {
			return nil, err
		}
		set.References = append(set.References, crossFile...)
		set.HasGlobAmbiguity = hasGlob
	}

	dedupeAndSort(set)
	return set, nil
}

// dedupeAndSort removes duplicate spans, drops references nested inside
// another reference's replacement span (deleting the outer statement
// subsumes them), and orders references per file by descending byte
// start.
func dedupeAndSort(set *ReferenceSet) {
	seen := make(map[string]bool)
	unique := set.References[:0]
	for _, r := range set.References {
		key := fmt.Sprintf("%s:%d:%d", r.File, r.ReplaceStart, r.ReplaceEnd)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, r)
	}

	var kept []Reference
	for i, r := range unique {
		nested := false
		for j, outer := range unique {
			if i == j || r.File != outer.File {
				continue
			}
			if r.ReplaceStart >= outer.ReplaceStart && r.ReplaceEnd <= outer.ReplaceEnd &&
				(outer.ReplaceEnd-outer.ReplaceStart) > (r.ReplaceEnd-r.ReplaceStart) {
				nested = true
				break
			}
		}
		if !nested {
			kept = append(kept, r)
		}
	}
	set.References = kept

	sort.Slice(set.References, func(i, j int) bool {
		a, b := set.References[i], set.References[j]
		if a.File != b.File {
			return a.File < b.File
		}
		return a.ByteStart > b.ByteStart
	})
}

// crossFileReferences scans the workspace for files importing the target
// and collects their references.
func crossFileReferences(ctx context.Context, definitionFile, name string, kind ast.SymbolKind) ([]Reference, bool, error) {
	workspaceRoot, err := FindWorkspaceRoot(definitionFile)
	if err != nil {
		// No Cargo.toml ancestor: the file stands alone, nothing to scan.
		return nil, false, nil
	}

	files, err := rustFiles(workspaceRoot)
	if err != nil {
		return nil, false, err
	}

	targetModule, err := modulePathForFile(workspaceRoot, definitionFile)
	if err != nil {
		return nil, false, err
	}

	parser := ast.NewRustParser()

	// First pass: parse every file once, recording imports and building
	// the single-hop re-export map.
	type parsedFile struct {
		path    string
		source  []byte
		imports []ast.Import
		scopes  *ast.ScopeMap
	}

	var all []parsedFile
	reexports := make(map[string][]reexport) // key: module\x00name
	reexportKey := func(module, symbol string) string { return module + "\x00" + symbol }

	for _, path := range files {
		source, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		parsed, err := parser.Parse(ctx, source, path)
		if err != nil {
			continue // Unparseable files are excluded from the scan.
		}

		all = append(all, parsedFile{path: path, source: source, imports: parsed.Imports, scopes: parsed.Scopes})

		module, err := modulePathForFile(workspaceRoot, path)
		if err != nil {
			continue
		}
		for _, imp := range parsed.Imports {
			if !imp.IsReexport || imp.IsGlob {
				continue
			}
			for _, imported := range imp.ImportedNames {
				outward := imp.Alias
				if outward == "" {
					outward = imported
				}
				key := reexportKey(imp.ModulePath(), imported)
				reexports[key] = append(reexports[key], reexport{
					reexportingModule: module,
					name:              outward,
				})
			}
		}
	}

	// Second pass: files whose imports reach the target get scanned.
	var refs []Reference
	hasGlob := false

	for _, pf := range all {
		if pf.path == definitionFile {
			continue
		}

		searchNames := make(map[string]bool)

		for _, imp := range pf.imports {
			importPath := imp.ModulePath()

			if imp.IsGlob {
				if importPathMatches(importPath, targetModule) {
					hasGlob = true
				}
				continue
			}

			for _, imported := range imp.ImportedNames {
				// Direct import of the target from its module (or a
				// parent/child path of it).
				if imported == name && importPathMatches(importPath, targetModule) {
					if imp.Alias != "" {
						searchNames[imp.Alias] = true
					} else {
						searchNames[name] = true
					}
					continue
				}

				// Single-hop re-export: the import names a module that
				// `pub use`s the target.
				for _, re := range reexports[reexportKey(targetModule, name)] {
					if re.name == imported && importPathMatches(importPath, re.reexportingModule) {
						if imp.Alias != "" {
							searchNames[imp.Alias] = true
						} else {
							searchNames[re.name] = true
						}
					}
				}
			}
		}

		for searchName := range searchNames {
			fileRefs, err := referencesInFile(ctx, pf.source, pf.scopes, pf.imports, pf.path, searchName, kind)
			if err != nil {
				return nil, hasGlob, err
			}
			refs = append(refs, fileRefs...)
		}
	}

	return refs, hasGlob, nil
}

// referencesInFile walks one file's tree collecting references to name,
// applying the shadow filter. The imports list comes from the same
// parse and decides which use declarations actually bind the name.
func referencesInFile(ctx context.Context, source []byte, scopes *ast.ScopeMap, imports []ast.Import, path, name string, kind ast.SymbolKind) ([]Reference, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(rust.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	defer tree.Close()

	walker := &refWalker{
		source:  source,
		scopes:  scopes,
		imports: imports,
		path:    path,
		name:    name,
		kind:    kind,
	}
	walker.walk(tree.RootNode())
	return walker.refs, nil
}

// refWalker accumulates references during one file walk.
type refWalker struct {
	source  []byte
	scopes  *ast.ScopeMap
	imports []ast.Import
	path    string
	name    string
	kind    ast.SymbolKind
	refs    []Reference
}

func (w *refWalker) text(node *sitter.Node) string {
	return string(w.source[node.StartByte():node.EndByte()])
}

func (w *refWalker) walk(node *sitter.Node) {
	switch node.Type() {
	case "use_declaration":
		// An import binding the name references it; deletion removes
		// the whole declaration so the file stays parseable.
		if w.importBinds(node) {
			w.addImportRef(node)
		}
		return // Nothing else inside a use declaration.

	case "call_expression":
		w.handleCall(node)
		// Recurse into arguments for nested references.
		for i := 0; i < int(node.ChildCount()); i++ {
			w.walk(node.Child(i))
		}
		return

	case "identifier":
		if w.isDeclarationSite(node) {
			return
		}
		if w.text(node) == w.name && !w.shadowed(int(node.StartByte())) {
			w.addPlainRef(node, contextOf(node))
		}
		return

	case "scoped_identifier", "scoped_type_identifier":
		if parent := node.Parent(); parent != nil && parent.Type() == "call_expression" {
			return // Handled by the call_expression case.
		}
		if strings.HasSuffix(w.text(node), "::"+w.name) {
			w.addPlainRef(node, contextOf(node))
		}
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		w.walk(node.Child(i))
	}
}

// isDeclarationSite reports whether an identifier node is a binding
// occurrence (function name, parameter, let pattern) rather than a use,
// or the callee of a call expression (handled separately).
func (w *refWalker) isDeclarationSite(node *sitter.Node) bool {
	parent := node.Parent()
	if parent == nil {
		return false
	}

	sameNode := func(field string) bool {
		f := parent.ChildByFieldName(field)
		return f != nil && f.StartByte() == node.StartByte() && f.EndByte() == node.EndByte()
	}

	switch parent.Type() {
	case "call_expression":
		return sameNode("function")
	case "function_item", "struct_item", "enum_item", "trait_item", "mod_item",
		"type_item", "const_item", "static_item":
		return sameNode("name")
	case "let_declaration", "parameter":
		return sameNode("pattern")
	}
	return false
}

// importBinds reports whether the use declaration at this node binds
// exactly the searched name. The check runs over the parsed import
// facts, matched to the node by span: the binding is the alias when one
// is declared, the imported name otherwise. Glob imports bind nothing
// nameable and never match; `helper_util` never matches `helper`.
func (w *refWalker) importBinds(node *sitter.Node) bool {
	start, end := int(node.StartByte()), int(node.EndByte())
	for _, imp := range w.imports {
		if imp.ByteStart != start || imp.ByteEnd != end || imp.IsGlob {
			continue
		}
		if imp.Alias != "" {
			if imp.Alias == w.name {
				return true
			}
			continue
		}
		for _, name := range imp.ImportedNames {
			if name == w.name {
				return true
			}
		}
	}
	return false
}

// handleCall records references where the called function names the
// target: plain calls, qualified Type::name(...) and Trait::name(...)
// paths, and value.name(...) method form.
func (w *refWalker) handleCall(node *sitter.Node) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}

	var matched bool
	refNode := fn

	switch fn.Type() {
	case "identifier":
		matched = w.text(fn) == w.name && !w.shadowed(int(fn.StartByte()))
	case "scoped_identifier":
		matched = strings.HasSuffix(w.text(fn), "::"+w.name)
	case "field_expression":
		if field := fn.ChildByFieldName("field"); field != nil && w.text(field) == w.name {
			matched = true
			refNode = field
		}
	}

	if !matched {
		return
	}
	if w.kind != "" && w.kind != ast.KindFunction && w.kind != ast.KindMethod {
		return
	}

	// Statement-position calls delete the whole statement; expression
	// positions substitute the unit value.
	replaceStart, replaceEnd := int(node.StartByte()), int(node.EndByte())
	sentinel := "()"
	if parent := node.Parent(); parent != nil && parent.Type() == "expression_statement" {
		replaceStart, replaceEnd = int(parent.StartByte()), int(parent.EndByte())
		replaceEnd = w.consumeTrailingNewline(replaceEnd)
		sentinel = ""
	}

	line, col := lineCol(w.source, int(refNode.StartByte()))
	w.refs = append(w.refs, Reference{
		File:         w.path,
		ByteStart:    int(refNode.StartByte()),
		ByteEnd:      int(refNode.EndByte()),
		Line:         line,
		Column:       col,
		Context:      CtxFunctionCall,
		ReplaceStart: replaceStart,
		ReplaceEnd:   replaceEnd,
		Sentinel:     sentinel,
	})
}

// addImportRef records a reference spanning the whole use declaration.
func (w *refWalker) addImportRef(node *sitter.Node) {
	start, end := int(node.StartByte()), int(node.EndByte())
	line, col := lineCol(w.source, start)
	w.refs = append(w.refs, Reference{
		File:         w.path,
		ByteStart:    start,
		ByteEnd:      end,
		Line:         line,
		Column:       col,
		Context:      CtxImport,
		ReplaceStart: start,
		ReplaceEnd:   w.consumeTrailingNewline(end),
		Sentinel:     "",
	})
}

// addPlainRef records an expression-position reference replaced by the
// unit sentinel on deletion.
func (w *refWalker) addPlainRef(node *sitter.Node, context RefContext) {
	start, end := int(node.StartByte()), int(node.EndByte())
	line, col := lineCol(w.source, start)
	w.refs = append(w.refs, Reference{
		File:         w.path,
		ByteStart:    start,
		ByteEnd:      end,
		Line:         line,
		Column:       col,
		Context:      context,
		ReplaceStart: start,
		ReplaceEnd:   end,
		Sentinel:     "()",
	})
}

// consumeTrailingNewline extends end past one trailing newline so a
// deleted statement does not leave a blank line behind.
func (w *refWalker) consumeTrailingNewline(end int) int {
	if end < len(w.source) && w.source[end] == '\n' {
		return end + 1
	}
	return end
}

func (w *refWalker) shadowed(offset int) bool {
	return w.scopes != nil && w.scopes.IsShadowedAt(w.name, offset)
}

// contextOf classifies a reference by its parent node.
func contextOf(node *sitter.Node) RefContext {
	parent := node.Parent()
	if parent == nil {
		return CtxIdentifier
	}
	switch parent.Type() {
	case "call_expression":
		return CtxFunctionCall
	case "use_declaration":
		return CtxImport
	case "field_expression":
		return CtxFieldAccess
	case "type_identifier", "generic_type", "type_arguments":
		return CtxTypeRef
	default:
		return CtxIdentifier
	}
}

// lineCol converts a byte offset into 1-based line, 0-based byte column.
func lineCol(source []byte, offset int) (int, int) {
	line := 1
	lineStart := 0
	for i := 0; i < offset && i < len(source); i++ {
		if source[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	return line, offset - lineStart
}

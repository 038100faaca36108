// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/oldnordic/splice/ast"
	"github.com/oldnordic/splice/graph"
	"github.com/oldnordic/splice/patch"
	"github.com/oldnordic/splice/resolve"
)

var (
	patchFile    string
	patchSymbol  string
	patchKind    string
	patchWith    string
	patchBatch   string
	patchPreview bool

	patchCmd = &cobra.Command{
		Use:   "patch",
		Short: "Replace a symbol's span (or apply a batch manifest) with validation gates",
		RunE:  runPatch,
	}
)

func init() {
	patchCmd.Flags().StringVar(&patchFile, "file", "", "source file containing the symbol")
	patchCmd.Flags().StringVar(&patchSymbol, "symbol", "", "symbol name to replace")
	patchCmd.Flags().StringVar(&patchKind, "kind", "", "symbol kind filter (function, struct, class, ...)")
	patchCmd.Flags().StringVar(&patchWith, "with", "", "file holding the replacement content")
	patchCmd.Flags().StringVar(&patchBatch, "batch", "", "batch manifest path (mutually exclusive with --file/--symbol)")
	patchCmd.Flags().BoolVar(&patchPreview, "preview", false, "compute and validate without touching the workspace")
	rootCmd.AddCommand(patchCmd)
}

func runPatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if patchBatch != "" {
		return runPatchBatch(ctx)
	}

	if patchFile == "" || patchSymbol == "" || patchWith == "" {
		return fmt.Errorf("patch requires --file, --symbol, and --with (or --batch)")
	}

	lang, err := effectiveLanguage(patchFile)
	if err != nil {
		return err
	}

	engine := patch.NewEngine()
	engine.Runner.ToolOverrides = cfg.Tools

	sym, err := resolveTarget(ctx, engine, patchFile, patchSymbol, patchKind, lang)
	if err != nil {
		return err
	}

	replacement, err := os.ReadFile(patchWith)
	if err != nil {
		return fmt.Errorf("reading replacement file: %w", err)
	}

	report, err := engine.ApplyBatch(ctx, patch.Batch{
		Replacements: []patch.SpanReplacement{{
			File:       patchFile,
			ByteStart:  sym.ByteStart,
			ByteEnd:    sym.ByteEnd,
			NewContent: string(replacement),
		}},
	}, engineOptions(patchFile, lang, patchPreview))
	if err != nil {
		return err
	}

	verb := "patched"
	if patchPreview {
		verb = "previewed patch of"
	}
	message := fmt.Sprintf("%s %q at bytes %d..%d", verb, patchSymbol, sym.ByteStart, sym.ByteEnd)
	emitSuccess(message, reportData(report))
	return nil
}

func runPatchBatch(ctx context.Context) error {
	if flagLanguage == "" {
		return fmt.Errorf("--batch requires --language")
	}
	lang, err := ast.ParseLanguage(flagLanguage)
	if err != nil {
		return err
	}

	batches, err := patch.LoadBatches(patchBatch)
	if err != nil {
		return err
	}

	engine := patch.NewEngine()
	engine.Runner.ToolOverrides = cfg.Tools

	merged := &patch.Report{}
	for _, batch := range batches {
		if len(batch.Replacements) == 0 {
			continue
		}
		report, err := engine.ApplyBatch(ctx, batch,
			engineOptions(batch.Replacements[0].File, lang, patchPreview))
		if err != nil {
			return err
		}
		merged.Files = append(merged.Files, report.Files...)
		merged.PreviewReports = append(merged.PreviewReports, report.PreviewReports...)
		if report.BackupManifestPath != "" {
			merged.BackupManifestPath = report.BackupManifestPath
		}
		if report.OperationID != "" {
			merged.OperationID = report.OperationID
		}
	}

	message := fmt.Sprintf("applied %d batch(es) across %d file(s)", len(batches), len(merged.Files))
	emitSuccess(message, reportData(merged))
	return nil
}

// effectiveLanguage applies the --language override or detects from the
// file extension.
func effectiveLanguage(file string) (ast.Language, error) {
	if flagLanguage != "" {
		return ast.ParseLanguage(flagLanguage)
	}
	return ast.DetectLanguage(file)
}

// resolveTarget parses the file, indexes its symbols (persisting them
// when --index is set), and resolves the query to a unique span.
func resolveTarget(ctx context.Context, engine *patch.Engine, file, symbol, kindStr string, lang ast.Language) (ast.Symbol, error) {
	result, err := engine.Registry.ParseFile(ctx, file, lang)
	if err != nil {
		return ast.Symbol{}, err
	}

	idx := graph.NewIndex()
	if err := idx.AddResult(result); err != nil {
		return ast.Symbol{}, err
	}

	if flagIndex {
		persistSymbols(file, result)
	}

	var kind ast.SymbolKind
	if kindStr != "" {
		kind, err = ast.ParseKind(kindStr)
		if err != nil {
			return ast.Symbol{}, err
		}
	}

	return resolve.Resolve(idx, resolve.Query{Name: symbol, File: file, Kind: kind})
}

// persistSymbols writes the parse result into the workspace's
// .splice-graph store. Failures are logged, never fatal; the store is
// an optional acceleration, not a gate.
func persistSymbols(file string, result *ast.ParseResult) {
	root := workspaceRootFor(file, result.Language)
	store, err := graph.OpenStore(graph.DefaultStoreConfig(filepath.Join(root, ".splice-graph")))
	if err != nil {
		slog.Warn("symbol store unavailable", slog.String("error", err.Error()))
		return
	}
	defer store.Close()

	if err := store.PutFileSymbols(file, result.Symbols); err != nil {
		slog.Warn("symbol store write failed",
			slog.String("file", file),
			slog.String("error", err.Error()))
	}
}

// workspaceRootFor picks the workspace root: the Cargo.toml ancestor
// for Rust, the file's directory otherwise.
func workspaceRootFor(file string, lang ast.Language) string {
	if lang == ast.LangRust {
		if root, err := resolve.FindWorkspaceRoot(file); err == nil {
			return root
		}
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return filepath.Dir(file)
	}
	return filepath.Dir(abs)
}

// engineOptions assembles the common patch options from global flags.
func engineOptions(file string, lang ast.Language, preview bool) patch.Options {
	return patch.Options{
		Language:     lang,
		WorkspaceDir: workspaceRootFor(file, lang),
		Analyzer:     analyzerMode(),
		Preview:      preview,
		CreateBackup: flagCreateBackup,
		OperationID:  flagOperationID,
	}
}

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

	"github.com/spf13/cobra"

	"github.com/oldnordic/splice/ast"
	"github.com/oldnordic/splice/patch"
	"github.com/oldnordic/splice/resolve"
)

var (
	deleteFile   string
	deleteSymbol string
	deleteKind   string

	deleteCmd = &cobra.Command{
		Use:   "delete",
		Short: "Delete a symbol definition (and, for Rust, every tracked reference)",
		RunE:  runDelete,
	}
)

func init() {
	deleteCmd.Flags().StringVar(&deleteFile, "file", "", "source file containing the symbol")
	deleteCmd.Flags().StringVar(&deleteSymbol, "symbol", "", "symbol name to delete")
	deleteCmd.Flags().StringVar(&deleteKind, "kind", "", "symbol kind filter")
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if deleteFile == "" || deleteSymbol == "" {
		return fmt.Errorf("delete requires --file and --symbol")
	}

	lang, err := effectiveLanguage(deleteFile)
	if err != nil {
		return err
	}

	engine := patch.NewEngine()
	engine.Runner.ToolOverrides = cfg.Tools

	var batch patch.Batch
	var refCount int
	var globWarning bool

	if lang == ast.LangRust {
		var kind ast.SymbolKind
		if deleteKind != "" {
			kind, err = ast.ParseKind(deleteKind)
			if err != nil {
				return err
			}
		}

		set, err := resolve.FindRustReferences(ctx, deleteFile, deleteSymbol, kind)
		if err != nil {
			return err
		}
		batch = set.DeletionBatch()
		refCount = len(set.References)
		globWarning = set.HasGlobAmbiguity
	} else {
		// Non-Rust languages delete only the definition span.
		sym, err := resolveTarget(ctx, engine, deleteFile, deleteSymbol, deleteKind, lang)
		if err != nil {
			return err
		}
		batch.Replacements = append(batch.Replacements, patch.SpanReplacement{
			File:      deleteFile,
			ByteStart: sym.ByteStart,
			ByteEnd:   sym.ByteEnd,
		})
	}

	report, err := engine.ApplyBatch(ctx, batch, engineOptions(deleteFile, lang, false))
	if err != nil {
		return err
	}

	message := fmt.Sprintf("deleted %q (%d reference(s) + definition) across %d file(s)",
		deleteSymbol, refCount, len(report.Files))
	if globWarning {
		message += "; WARNING: glob imports detected - some references may have been missed"
	}

	emitSuccess(message, reportData(report))
	return nil
}

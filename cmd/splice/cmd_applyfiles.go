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
)

var (
	applyGlob       string
	applyFind       string
	applyReplace    string
	applyNoValidate bool

	applyFilesCmd = &cobra.Command{
		Use:   "apply-files",
		Short: "Find/replace a pattern across files, AST-confirmed",
		Long:  "Replaces every occurrence of a literal pattern in files matching a glob. Matches inside comment or string tokens are skipped unless the pattern itself begins with a comment prefix.",
		RunE:  runApplyFiles,
	}
)

func init() {
	applyFilesCmd.Flags().StringVar(&applyGlob, "glob", "", "glob selecting the files to search")
	applyFilesCmd.Flags().StringVar(&applyFind, "find", "", "literal text to find")
	applyFilesCmd.Flags().StringVar(&applyReplace, "replace", "", "replacement text")
	applyFilesCmd.Flags().BoolVar(&applyNoValidate, "no-validate", false, "skip the validation gates")
	rootCmd.AddCommand(applyFilesCmd)
}

func runApplyFiles(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if applyGlob == "" || applyFind == "" {
		return fmt.Errorf("apply-files requires --glob and --find")
	}

	var lang ast.Language
	if flagLanguage != "" {
		parsed, err := ast.ParseLanguage(flagLanguage)
		if err != nil {
			return err
		}
		lang = parsed
	}

	engine := patch.NewEngine()
	engine.Runner.ToolOverrides = cfg.Tools

	result, err := engine.ApplyPattern(ctx, patch.PatternConfig{
		Glob:     applyGlob,
		Find:     applyFind,
		Replace:  applyReplace,
		Language: lang,
		Validate: !applyNoValidate,
		Options: patch.Options{
			Analyzer:     analyzerMode(),
			CreateBackup: flagCreateBackup,
			OperationID:  flagOperationID,
			WorkspaceDir: ".",
		},
	})
	if err != nil {
		return err
	}

	data := map[string]any{
		"files_patched":      result.FilesPatched,
		"replacements_count": result.ReplacementsCount,
	}
	if result.Report != nil {
		for k, v := range reportData(result.Report) {
			data[k] = v
		}
	}

	emitSuccess(fmt.Sprintf("replaced %d occurrence(s) across %d file(s)",
		result.ReplacementsCount, len(result.FilesPatched)), data)
	return nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command splice is a span-safe, multi-language source refactoring
// tool.
//
// Given a source file, a symbol, and a replacement (or deletion or
// pattern instruction), splice performs a byte-accurate edit, re-parses
// the file to confirm it is still syntactically valid, runs the
// language's native compiler to confirm it is semantically valid, and
// either commits atomically or rolls the workspace back to its
// pre-edit bytes.
//
// Usage:
//
//	splice patch --file src/lib.rs --symbol greet --with new_greet.rs
//	splice patch --batch batch.json --language rust
//	splice delete --file src/lib.rs --symbol helper
//	splice undo --manifest .splice-backup/<op>/manifest.json
//	splice apply-files --glob 'src/**/*.rs' --find old --replace new
//	splice plan --plan plan.json
//
// Structured JSON is emitted on stdout (success) and stderr (error);
// the exit code is 0 on success, 1 on any error.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/oldnordic/splice/config"
	"github.com/oldnordic/splice/validate"
)

var (
	rootCmd = &cobra.Command{
		Use:           "splice",
		Short:         "Span-safe, compiler-validated source refactoring",
		Long:          "Splice performs byte-accurate symbol edits validated by re-parsing and by the language's own compiler, with atomic commit or rollback.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags shared by mutating commands.
	flagLanguage     string
	flagAnalyzer     string
	flagCreateBackup bool
	flagOperationID  string
	flagMetadata     string
	flagIndex        bool

	cfg config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		emitError(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLanguage, "language", "", "language override (rust, python, c, cpp, java, javascript, typescript)")
	rootCmd.PersistentFlags().StringVar(&flagAnalyzer, "analyzer", "", "rust-analyzer mode: off, auto, or a binary path")
	rootCmd.PersistentFlags().BoolVar(&flagCreateBackup, "create-backup", false, "record a backup manifest before writing")
	rootCmd.PersistentFlags().StringVar(&flagOperationID, "operation-id", "", "operation identifier scoping the backup directory")
	rootCmd.PersistentFlags().StringVar(&flagMetadata, "metadata", "", "caller metadata echoed into the success payload (JSON or plain text)")
	rootCmd.PersistentFlags().BoolVar(&flagIndex, "index", false, "persist extracted symbols to the .splice-graph store")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		wd, err := os.Getwd()
		if err != nil {
			wd = "."
		}
		cfg, err = config.Load(wd)
		if err != nil {
			slog.Warn("config load failed, using defaults", slog.String("error", err.Error()))
			cfg = config.Default()
		}

		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.SlogLevel(),
		})))
	}
}

// analyzerMode resolves the effective analyzer mode from the flag,
// falling back to the config default.
func analyzerMode() validate.AnalyzerMode {
	if flagAnalyzer != "" {
		return validate.ParseAnalyzerMode(flagAnalyzer)
	}
	return validate.ParseAnalyzerMode(cfg.Analyzer)
}

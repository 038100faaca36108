// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oldnordic/splice/ast"
	"github.com/oldnordic/splice/span"
)

// PatternConfig configures a multi-file find/replace.
type PatternConfig struct {
	// Glob selects the files to search.
	Glob string

	// Find is the literal text pattern to locate.
	Find string

	// Replace is the replacement text.
	Replace string

	// Language overrides per-file language detection.
	Language ast.Language

	// Validate runs the standard gates after applying.
	Validate bool

	// Options carries the engine options (workspace, backup, analyzer)
	// used when applying.
	Options Options
}

// PatternMatch is one confirmed occurrence of the pattern.
type PatternMatch struct {
	File      string
	ByteStart int
	ByteEnd   int
	Line      int
	Column    int
}

// PatternResult reports a completed pattern replacement.
type PatternResult struct {
	FilesPatched      []string
	ReplacementsCount int
	Report            *Report
}

// FindPattern locates every occurrence of cfg.Find in the files matched
// by cfg.Glob, confirmed by the AST to fall outside comment and string
// tokens. A match inside a comment is allowed only when the search
// pattern itself begins with a comment prefix.
func FindPattern(ctx context.Context, cfg PatternConfig) ([]PatternMatch, error) {
	if cfg.Find == "" {
		return nil, fmt.Errorf("find pattern must not be empty")
	}

	paths, err := filepath.Glob(cfg.Glob)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern: %w", err)
	}

	var matches []PatternMatch
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}

		lang := cfg.Language
		if lang == "" {
			lang, err = ast.DetectLanguage(path)
			if err != nil {
				continue // Non-source files in the glob are skipped.
			}
		}

		fileMatches, err := findPatternInFile(ctx, path, cfg.Find, lang)
		if err != nil {
			return nil, err
		}
		matches = append(matches, fileMatches...)
	}

	return matches, nil
}

func findPatternInFile(ctx context.Context, path, pattern string, lang ast.Language) ([]PatternMatch, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	tokens, err := ast.LiteralSpans(ctx, content, path, lang)
	if err != nil {
		return nil, err
	}

	patternIsComment := strings.HasPrefix(pattern, "//") ||
		strings.HasPrefix(pattern, "/*") || strings.HasPrefix(pattern, "#")

	var matches []PatternMatch
	text := string(content)
	offset := 0
	for {
		idx := strings.Index(text[offset:], pattern)
		if idx < 0 {
			break
		}
		start := offset + idx
		end := start + len(pattern)
		offset = end

		if tokens.InComment(start) && !patternIsComment {
			continue
		}
		if tokens.InString(start) {
			continue
		}

		line, col := span.LineCol(content, start)
		matches = append(matches, PatternMatch{
			File:      path,
			ByteStart: start,
			ByteEnd:   end,
			Line:      line,
			Column:    col,
		})
	}

	return matches, nil
}

// ApplyPattern finds all confirmed matches and applies the replacement
// as one batch through the engine, optionally with validation gates.
func (e *Engine) ApplyPattern(ctx context.Context, cfg PatternConfig) (*PatternResult, error) {
	matches, err := FindPattern(ctx, cfg)
	if err != nil {
		return nil, err
	}

	result := &PatternResult{}
	if len(matches) == 0 {
		return result, nil
	}

	var batch Batch
	seen := make(map[string]bool)
	for _, m := range matches {
		batch.Replacements = append(batch.Replacements, SpanReplacement{
			File:       m.File,
			ByteStart:  m.ByteStart,
			ByteEnd:    m.ByteEnd,
			NewContent: cfg.Replace,
		})
		if !seen[m.File] {
			seen[m.File] = true
			result.FilesPatched = append(result.FilesPatched, m.File)
		}
	}

	opts := cfg.Options
	opts.Language = cfg.Language
	opts.Preview = false

	if cfg.Validate {
		report, err := e.ApplyBatch(ctx, batch, opts)
		if err != nil {
			return nil, err
		}
		result.Report = report
	} else {
		report, err := e.applyWithoutGates(batch, opts)
		if err != nil {
			return nil, err
		}
		result.Report = report
	}

	result.ReplacementsCount = len(batch.Replacements)
	return result, nil
}

// applyWithoutGates stages and writes a batch, skipping the validation
// gates. Used by apply-files --no-validate.
func (e *Engine) applyWithoutGates(batch Batch, opts Options) (*Report, error) {
	staged, err := e.stage(batch, opts)
	if err != nil {
		return nil, err
	}

	var backup *BackupWriter
	operationID := opts.OperationID
	if opts.CreateBackup {
		backup, err = NewBackupWriter(opts.WorkspaceDir, opts.OperationID)
		if err != nil {
			return nil, err
		}
		operationID = backup.OperationID()
		for _, f := range staged {
			if err := backup.BackupFile(f.path); err != nil {
				return nil, err
			}
		}
	}

	for _, f := range staged {
		if err := atomicWriteFile(f.path, f.candidate, 0o644); err != nil {
			return nil, e.rollback(staged, fmt.Errorf("writing %s: %w", f.path, err))
		}
		f.written = true
	}

	report := &Report{OperationID: operationID}
	for _, f := range staged {
		report.Files = append(report.Files, FileResult{
			File:       f.path,
			BeforeHash: f.before,
			AfterHash:  f.after,
		})
		if backup != nil {
			backup.RecordAfterHash(f.path, f.after)
		}
	}

	if backup != nil {
		path, err := backup.Finalize()
		if err != nil {
			return nil, err
		}
		report.BackupManifestPath = path
	}

	return report, nil
}

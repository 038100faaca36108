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
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/oldnordic/splice/ast"
)

// PreviewReport describes the lines and bytes a replacement would
// change, without touching the workspace.
type PreviewReport struct {
	File         string `json:"file"`
	LineStart    int    `json:"line_start"`
	LineEnd      int    `json:"line_end"`
	LinesAdded   int    `json:"lines_added"`
	LinesRemoved int    `json:"lines_removed"`
	BytesAdded   int    `json:"bytes_added"`
	BytesRemoved int    `json:"bytes_removed"`

	// Diff is the rendered unified diff of the candidate edit.
	Diff string `json:"diff,omitempty"`
}

// preview validates the staged candidates against a temp-directory copy
// of the workspace. The real paths are never written; the gates run for
// real against the copy.
func (e *Engine) preview(ctx context.Context, staged []*stagedFile, opts Options) (*Report, error) {
	workspace := opts.WorkspaceDir
	if workspace == "" {
		var err error
		workspace, err = os.Getwd()
		if err != nil {
			return nil, err
		}
	}

	tempRoot, err := os.MkdirTemp("", "splice-preview-")
	if err != nil {
		return nil, fmt.Errorf("creating preview directory: %w", err)
	}
	defer os.RemoveAll(tempRoot)

	if err := copyWorkspace(workspace, tempRoot); err != nil {
		return nil, fmt.Errorf("copying workspace for preview: %w", err)
	}

	// Apply candidates inside the copy.
	tempPaths := make(map[string]string, len(staged))
	for _, f := range staged {
		rel, err := filepath.Rel(workspace, f.path)
		if err != nil || strings.HasPrefix(rel, "..") {
			return nil, fmt.Errorf("file %q is not under workspace root %q", f.path, workspace)
		}
		tempPath := filepath.Join(tempRoot, rel)
		if err := os.MkdirAll(filepath.Dir(tempPath), 0o750); err != nil {
			return nil, err
		}
		if err := atomicWriteFile(tempPath, f.candidate, 0o644); err != nil {
			return nil, fmt.Errorf("writing preview copy of %s: %w", f.path, err)
		}
		tempPaths[f.path] = tempPath
	}

	// Syntax gate against candidate bytes.
	for _, f := range staged {
		if err := ast.ReparseContent(ctx, f.candidate, f.path, f.language); err != nil {
			return nil, err
		}
	}

	// Semantic gate against the copy.
	languages := make(map[ast.Language]bool)
	for _, f := range staged {
		languages[f.language] = true
	}
	if languages[ast.LangRust] {
		if err := e.Runner.CheckRustWorkspace(ctx, tempRoot); err != nil {
			return nil, err
		}
	}
	for _, f := range staged {
		if f.language == ast.LangRust {
			continue
		}
		if err := e.Runner.CheckFile(ctx, tempPaths[f.path], f.language); err != nil {
			return nil, err
		}
	}

	report := &Report{OperationID: opts.OperationID}
	for _, f := range staged {
		report.Files = append(report.Files, FileResult{
			File:       f.path,
			BeforeHash: f.before,
			AfterHash:  f.after,
		})
		report.PreviewReports = append(report.PreviewReports, buildPreviewReport(f))
	}

	return report, nil
}

// copyWorkspace copies a source tree, skipping VCS metadata, build
// output, and splice's own state directories.
func copyWorkspace(src, dst string) error {
	skipDirs := map[string]bool{
		".git":          true,
		"target":        true,
		"node_modules":  true,
		BackupDirName:   true,
		".splice-graph": true,
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Unreadable entries are skipped, not fatal.
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return os.MkdirAll(filepath.Join(dst, rel), 0o750)
		}

		if !d.Type().IsRegular() {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		return os.WriteFile(filepath.Join(dst, rel), content, 0o644)
	})
}

// buildPreviewReport diffs original against candidate bytes and renders
// the unified diff.
func buildPreviewReport(f *stagedFile) PreviewReport {
	oldLines := strings.Split(string(f.original), "\n")
	newLines := strings.Split(string(f.candidate), "\n")

	first, lastOld, lastNew, changed := changedRegion(oldLines, newLines)

	report := PreviewReport{File: f.path}
	if !changed {
		return report
	}

	report.LineStart = first + 1
	report.LineEnd = lastOld + 1
	report.LinesRemoved = lastOld - first + 1
	report.LinesAdded = lastNew - first + 1

	var body strings.Builder
	for i := first; i <= lastOld && i < len(oldLines); i++ {
		body.WriteString("-" + oldLines[i] + "\n")
		report.BytesRemoved += len(oldLines[i]) + 1
	}
	for i := first; i <= lastNew && i < len(newLines); i++ {
		body.WriteString("+" + newLines[i] + "\n")
		report.BytesAdded += len(newLines[i]) + 1
	}

	fileDiff := &diff.FileDiff{
		OrigName: f.path,
		NewName:  f.path,
		Hunks: []*diff.Hunk{{
			OrigStartLine: int32(report.LineStart),
			OrigLines:     int32(report.LinesRemoved),
			NewStartLine:  int32(report.LineStart),
			NewLines:      int32(report.LinesAdded),
			Body:          []byte(body.String()),
		}},
	}

	if rendered, err := diff.PrintFileDiff(fileDiff); err == nil {
		report.Diff = string(rendered)
	}

	return report
}

// changedRegion locates the first and last differing lines between two
// line slices. Returns changed=false when the contents are identical.
func changedRegion(oldLines, newLines []string) (first, lastOld, lastNew int, changed bool) {
	minLen := len(oldLines)
	if len(newLines) < minLen {
		minLen = len(newLines)
	}

	first = -1
	for i := 0; i < minLen; i++ {
		if oldLines[i] != newLines[i] {
			first = i
			break
		}
	}
	if first == -1 {
		if len(oldLines) == len(newLines) {
			return 0, 0, 0, false
		}
		first = minLen
	}

	oldIdx, newIdx := len(oldLines)-1, len(newLines)-1
	for oldIdx >= first && newIdx >= first && oldLines[oldIdx] == newLines[newIdx] {
		oldIdx--
		newIdx--
	}

	return first, oldIdx, newIdx, true
}

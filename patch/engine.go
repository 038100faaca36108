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
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/oldnordic/splice/ast"
	"github.com/oldnordic/splice/span"
	"github.com/oldnordic/splice/validate"
)

var tracer = otel.Tracer("splice.patch")

// RollbackError is the catastrophic case: validation failed AND the
// attempt to restore pre-edit bytes also failed. The original gate error
// and the rollback failure surface together; any BackupManifest stays on
// disk for out-of-band recovery.
type RollbackError struct {
	// Cause is the gate failure that triggered rollback.
	Cause error

	// RollbackErr is the failure encountered while restoring.
	RollbackErr error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback failed after %v: %v", e.Cause, e.RollbackErr)
}

func (e *RollbackError) Unwrap() error { return e.Cause }

// ErrorKind returns the stable kind tag for CLI payloads.
func (e *RollbackError) ErrorKind() string { return "RollbackFailed" }

// Options configures one ApplyBatch transaction.
type Options struct {
	// Language is the batch's language. Required for batch manifests;
	// otherwise detected per file.
	Language ast.Language

	// WorkspaceDir is the workspace root: crate root for the Rust
	// gates, and the base directory for backups and previews.
	WorkspaceDir string

	// Analyzer selects the optional rust-analyzer gate.
	Analyzer validate.AnalyzerMode

	// Preview computes and validates the edit against a temp-directory
	// copy of the workspace; the original paths are never written.
	Preview bool

	// CreateBackup records a BackupManifest before writing.
	CreateBackup bool

	// OperationID scopes the backup directory; generated when empty.
	OperationID string
}

// FileResult reports per-file hashes for a committed (or previewed)
// transaction.
type FileResult struct {
	File       string `json:"file"`
	BeforeHash string `json:"before_hash"`
	AfterHash  string `json:"after_hash"`
}

// Report is the structured outcome of ApplyBatch.
type Report struct {
	Files              []FileResult
	PreviewReports     []PreviewReport
	BackupManifestPath string
	OperationID        string
}

// Engine applies batches with staged validation gates.
//
// Thread Safety: Engine methods must not run concurrently over
// overlapping file sets; the workspace filesystem is the shared
// resource and the engine takes no lock.
type Engine struct {
	Registry *ast.Registry
	Runner   *validate.Runner
}

// NewEngine creates an Engine with a fresh parser registry and
// validation runner.
func NewEngine() *Engine {
	return &Engine{
		Registry: ast.NewRegistry(),
		Runner:   validate.NewRunner(),
	}
}

// stagedFile is one file's captured pre-state plus computed candidate.
type stagedFile struct {
	path      string
	language  ast.Language
	original  []byte
	candidate []byte
	before    string
	after     string
	written   bool
}

// ApplyBatch stages every replacement in the batch, writes candidate
// bytes atomically, runs the validation gates, and either commits or
// rolls every touched file back to its pre-edit bytes.
//
// An empty batch is a no-op reporting no files.
func (e *Engine) ApplyBatch(ctx context.Context, batch Batch, opts Options) (*Report, error) {
	ctx, otelSpan := tracer.Start(ctx, "patch.ApplyBatch",
		trace.WithAttributes(
			attribute.Int("replacements", len(batch.Replacements)),
			attribute.Bool("preview", opts.Preview),
		))
	defer otelSpan.End()

	if len(batch.Replacements) == 0 {
		return &Report{OperationID: opts.OperationID}, nil
	}

	// Stage 1: group, validate spans, capture pre-state.
	staged, err := e.stage(batch, opts)
	if err != nil {
		return nil, err
	}

	if opts.Preview {
		return e.preview(ctx, staged, opts)
	}

	// Stage 3: backup before first write.
	var backup *BackupWriter
	backupPath := ""
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

	// Stage 4: write candidates; abort and roll back on partial failure.
	for _, f := range staged {
		if err := atomicWriteFile(f.path, f.candidate, 0o644); err != nil {
			writeErr := fmt.Errorf("writing %s: %w", f.path, err)
			return nil, e.rollback(staged, writeErr)
		}
		f.written = true
	}

	// Stages 5-7: validation gates.
	if err := e.runGates(ctx, staged, opts); err != nil {
		return nil, e.rollback(staged, err)
	}

	// Stage 8: commit.
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
		backupPath, err = backup.Finalize()
		if err != nil {
			return nil, fmt.Errorf("finalizing backup manifest: %w", err)
		}
		report.BackupManifestPath = backupPath
	}

	return report, nil
}

// stage groups replacements by file, rejects overlaps and misaligned
// spans, and computes each file's candidate bytes by applying that
// file's replacements in descending byte order.
//
// Paths are absolutized up front so backup, preview, and the
// workspace-containment checks all see the same form regardless of how
// the caller spelled them.
func (e *Engine) stage(batch Batch, opts Options) ([]*stagedFile, error) {
	byFile := make(map[string][]SpanReplacement)
	var order []string
	for _, r := range batch.Replacements {
		abs, err := filepath.Abs(r.File)
		if err != nil {
			return nil, fmt.Errorf("resolving path %s: %w", r.File, err)
		}
		r.File = abs
		if _, seen := byFile[abs]; !seen {
			order = append(order, abs)
		}
		byFile[abs] = append(byFile[abs], r)
	}

	var staged []*stagedFile
	for _, path := range order {
		replacements := byFile[path]

		sort.Slice(replacements, func(i, j int) bool {
			return replacements[i].ByteStart > replacements[j].ByteStart
		})

		// Overlap check: with descending starts, each replacement must
		// end at or before the start of the one before it (the next
		// higher span).
		for i := 1; i < len(replacements); i++ {
			if replacements[i].ByteEnd > replacements[i-1].ByteStart {
				return nil, &InvalidBatchSchemaError{
					Message: fmt.Sprintf("overlapping replacements in %s: [%d,%d) and [%d,%d)",
						path,
						replacements[i].ByteStart, replacements[i].ByteEnd,
						replacements[i-1].ByteStart, replacements[i-1].ByteEnd),
				}
			}
		}

		original, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		lang := opts.Language
		if lang == "" {
			lang, err = ast.DetectLanguage(path)
			if err != nil {
				return nil, err
			}
		}

		candidate := original
		for _, r := range replacements {
			candidate, err = span.ReplaceRange(path, candidate, r.ByteStart, r.ByteEnd, []byte(r.NewContent))
			if err != nil {
				return nil, err
			}
		}

		staged = append(staged, &stagedFile{
			path:      path,
			language:  lang,
			original:  original,
			candidate: candidate,
			before:    span.Hash(original),
			after:     span.Hash(candidate),
		})
	}

	return staged, nil
}

// runGates executes the syntax, semantic, and analyzer gates over the
// staged files at their real paths.
func (e *Engine) runGates(ctx context.Context, staged []*stagedFile, opts Options) error {
	// Gate 1: syntax. Re-parse each touched file from disk.
	for _, f := range staged {
		if err := e.Registry.Reparse(ctx, f.path, f.language); err != nil {
			return err
		}
	}

	// Gate 2: semantics. One workspace-level check per Rust batch;
	// per-file checks, fanned out, for everything else.
	languages := make(map[ast.Language]bool)
	for _, f := range staged {
		languages[f.language] = true
	}

	if languages[ast.LangRust] {
		workspace := opts.WorkspaceDir
		if workspace == "" {
			root, err := validate.FindCrateRoot(staged[0].path)
			if err != nil {
				return err
			}
			workspace = root
		}
		if err := e.Runner.CheckRustWorkspace(ctx, workspace); err != nil {
			return err
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, f := range staged {
		if f.language == ast.LangRust {
			continue
		}
		f := f
		group.Go(func() error {
			return e.Runner.CheckFile(groupCtx, f.path, f.language)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	// Gate 3: optional rust-analyzer, Rust only.
	if languages[ast.LangRust] && opts.Analyzer.Kind != "off" && opts.Analyzer.Kind != "" {
		workspace := opts.WorkspaceDir
		if workspace == "" {
			root, err := validate.FindCrateRoot(staged[0].path)
			if err != nil {
				return err
			}
			workspace = root
		}
		if err := e.Runner.RunAnalyzer(ctx, workspace, opts.Analyzer); err != nil {
			return err
		}
	}

	return nil
}

// rollback restores every written file to its captured pre-edit bytes.
// A rollback that itself fails surfaces both errors as *RollbackError.
func (e *Engine) rollback(staged []*stagedFile, cause error) error {
	slog.Warn("validation failed, rolling back patch",
		slog.String("error", cause.Error()),
		slog.Int("files", len(staged)))

	for _, f := range staged {
		if !f.written {
			continue
		}
		if err := atomicWriteFile(f.path, f.original, 0o644); err != nil {
			return &RollbackError{Cause: cause, RollbackErr: fmt.Errorf("restoring %s: %w", f.path, err)}
		}
	}

	return cause
}

// atomicWriteFile writes content to path via a same-directory temp file,
// fsync, then rename. The rename is the linearization point.
func atomicWriteFile(path string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("writing content: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing to disk: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}

	success = true
	return nil
}

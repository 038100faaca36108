// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/oldnordic/splice/ast"
)

var tracer = otel.Tracer("splice.validate")

// AnalyzerMode selects how the optional rust-analyzer gate runs.
type AnalyzerMode struct {
	// Kind is one of "off", "path", "explicit".
	Kind string

	// Path is the binary location for the explicit mode.
	Path string
}

// Analyzer modes.
var (
	AnalyzerOff  = AnalyzerMode{Kind: "off"}
	AnalyzerPath = AnalyzerMode{Kind: "path"}
)

// AnalyzerExplicit selects a specific rust-analyzer binary.
func AnalyzerExplicit(path string) AnalyzerMode {
	return AnalyzerMode{Kind: "explicit", Path: path}
}

// ParseAnalyzerMode converts a CLI/config string into an AnalyzerMode.
// Accepted forms: "off", "auto" (PATH lookup), or a binary path.
func ParseAnalyzerMode(s string) AnalyzerMode {
	switch strings.ToLower(s) {
	case "", "off":
		return AnalyzerOff
	case "auto", "path", "on":
		return AnalyzerPath
	default:
		return AnalyzerExplicit(s)
	}
}

// Runner executes per-language validation gates.
//
// Tool metadata (resolved path + version) is collected once per tool per
// Runner; a Runner is scoped to one invocation.
//
// Thread Safety: Runner is safe for concurrent use; the metadata cache
// is mutex-guarded so per-file gates may fan out.
type Runner struct {
	// ToolOverrides maps a default binary name to a replacement
	// (e.g. "python" -> "python3"). Populated from config.
	ToolOverrides map[string]string

	mu        sync.Mutex
	metaCache map[string]ToolMetadata
}

// NewRunner creates a Runner with no overrides.
func NewRunner() *Runner {
	return &Runner{metaCache: make(map[string]ToolMetadata)}
}

// tool resolves a binary name through the override table.
func (r *Runner) tool(name string) string {
	if override, ok := r.ToolOverrides[name]; ok && override != "" {
		return override
	}
	return name
}

// metadata returns cached tool metadata, collecting it on first use.
func (r *Runner) metadata(binary string, versionArgs ...string) ToolMetadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.metaCache == nil {
		r.metaCache = make(map[string]ToolMetadata)
	}
	if meta, ok := r.metaCache[binary]; ok {
		return meta
	}
	meta := collectToolMetadata(binary, versionArgs...)
	r.metaCache[binary] = meta
	return meta
}

// CheckRustWorkspace runs `cargo check` at the crate root. An
// error-level result returns *CargoCheckError with parsed diagnostics.
func (r *Runner) CheckRustWorkspace(ctx context.Context, workspaceDir string) error {
	ctx, span := tracer.Start(ctx, "validate.CheckRustWorkspace",
		trace.WithAttributes(attribute.String("workspace", workspaceDir)))
	defer span.End()

	cargo := r.tool("cargo")
	cmd := exec.CommandContext(ctx, cargo, "check", "--message-format=short")
	cmd.Dir = workspaceDir
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Errorf("running cargo check: %w", err)
	}

	meta := r.metadata(cargo, "--version")
	diags := parseRustStyleOutput("cargo-check", string(out))
	for i := range diags {
		diags[i] = diags[i].WithMetadata(meta)
	}

	return &CargoCheckError{
		Workspace: workspaceDir,
		Output:    string(out),
		Diags:     diags,
	}
}

// RunAnalyzer runs the optional rust-analyzer gate. Any output at all
// fails the gate (*AnalyzerFailedError); a missing binary returns
// *AnalyzerNotAvailableError.
func (r *Runner) RunAnalyzer(ctx context.Context, workspaceDir string, mode AnalyzerMode) error {
	if mode.Kind == "off" || mode.Kind == "" {
		return nil
	}

	binary := "rust-analyzer"
	if mode.Kind == "explicit" {
		binary = mode.Path
	}

	ctx, span := tracer.Start(ctx, "validate.RunAnalyzer",
		trace.WithAttributes(attribute.String("mode", mode.Kind)))
	defer span.End()

	cmd := exec.CommandContext(ctx, binary, "check", "--workspace")
	cmd.Dir = workspaceDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return &AnalyzerNotAvailableError{Mode: mode.Kind}
		}
		// rust-analyzer exits nonzero with diagnostics; fall through to
		// the output check.
	}

	combined := strings.TrimSpace(string(out))
	if combined == "" {
		return nil
	}

	meta := r.metadata(binary, "--version")
	diags := parseRustStyleOutput("rust-analyzer", combined)
	for i := range diags {
		diags[i] = diags[i].WithMetadata(meta)
	}

	return &AnalyzerFailedError{Output: combined, Diags: diags}
}

// CheckFile runs the per-file semantic gate for non-Rust languages.
//
// The command table follows the language's conventional checker:
// py_compile, gcc/g++ -fsyntax-only, javac (output discarded), node
// --check, tsc --noEmit. A missing tool passes the gate with a warning
// log; the gate cannot hold files hostage to toolchains the host never
// installed.
func (r *Runner) CheckFile(ctx context.Context, path string, lang ast.Language) error {
	ctx, span := tracer.Start(ctx, "validate.CheckFile",
		trace.WithAttributes(
			attribute.String("file", path),
			attribute.String("language", string(lang)),
		))
	defer span.End()

	switch lang {
	case ast.LangPython:
		return r.checkWith(ctx, path, lang, "python", []string{"-m", "py_compile", path},
			filepath.Dir(path), parsePythonOutput)
	case ast.LangC:
		return r.checkGCCStyle(ctx, path, lang, "gcc")
	case ast.LangCpp:
		return r.checkGCCStyle(ctx, path, lang, "g++")
	case ast.LangJava:
		return r.checkJava(ctx, path)
	case ast.LangJavaScript:
		return r.checkWith(ctx, path, lang, "node", []string{"--check", path},
			filepath.Dir(path), parseNodeOutput)
	case ast.LangTypeScript:
		return r.checkWith(ctx, path, lang, "tsc", []string{"--noEmit", path},
			tsProjectRoot(path), parseTscOutput)
	case ast.LangRust:
		return errors.New("rust files validate via CheckRustWorkspace")
	default:
		return fmt.Errorf("no validation gate for language %q", lang)
	}
}

// checkWith runs one checker command and feeds its output through the
// language's extractor.
func (r *Runner) checkWith(
	ctx context.Context,
	path string,
	lang ast.Language,
	binary string,
	args []string,
	dir string,
	parse func(output, file string) []Diagnostic,
) error {
	binary = r.tool(binary)

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	var execErr *exec.Error
	if errors.As(err, &execErr) {
		slog.Warn("validation tool not available, gate skipped",
			slog.String("tool", binary),
			slog.String("file", path))
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Errorf("running %s: %w", binary, err)
	}

	meta := r.metadata(binary, "--version")
	diags := parse(string(out), path)
	for i := range diags {
		diags[i] = diags[i].WithMetadata(meta)
	}

	if !HasErrors(diags) {
		// Warning-only output passes the gate.
		return nil
	}

	return &CompilerValidationError{File: path, Language: string(lang), Diags: diags}
}

// checkGCCStyle shares the gcc/g++ invocation and extractor.
func (r *Runner) checkGCCStyle(ctx context.Context, path string, lang ast.Language, binary string) error {
	tool := r.tool(binary)
	return r.checkWith(ctx, path, lang, binary, []string{"-fsyntax-only", path},
		filepath.Dir(path), func(output, file string) []Diagnostic {
			return parseGCCOutput(tool, output)
		})
}

// checkJava compiles the file with class output discarded into a temp
// directory.
func (r *Runner) checkJava(ctx context.Context, path string) error {
	outDir, err := os.MkdirTemp("", "splice-javac-")
	if err != nil {
		return fmt.Errorf("creating javac output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	return r.checkWith(ctx, path, ast.LangJava, "javac", []string{"-d", outDir, path},
		filepath.Dir(path), parseJavacOutput)
}

// tsProjectRoot finds the nearest ancestor directory containing
// tsconfig.json, falling back to the file's own directory.
func tsProjectRoot(path string) string {
	dir := filepath.Dir(path)
	for current := dir; ; {
		if _, err := os.Stat(filepath.Join(current, "tsconfig.json")); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return dir
		}
		current = parent
	}
}

// FindCrateRoot walks upward from path to the nearest directory holding
// Cargo.toml, the workspace the Rust gates run in.
func FindCrateRoot(path string) (string, error) {
	current := filepath.Dir(path)
	for {
		if _, err := os.Stat(filepath.Join(current, "Cargo.toml")); err == nil {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("Cargo.toml not found in any parent of %s", path)
		}
		current = parent
	}
}

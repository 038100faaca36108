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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FindWorkspaceRoot walks upward from path to the nearest directory
// containing Cargo.toml.
func FindWorkspaceRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	current := filepath.Dir(abs)
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

// rustFiles lists every .rs file under root, excluding target/, .git/,
// and hidden directories.
func rustFiles(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Unreadable entries are skipped.
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (name == "target" || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".rs") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// modulePathForFile converts a workspace-relative Rust file path into
// its crate module path:
//
//	src/util/helpers.rs -> crate::util::helpers
//	src/util/mod.rs     -> crate::util
//	src/lib.rs          -> crate
func modulePathForFile(workspaceRoot, filePath string) (string, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return "", err
	}
	relative, err := filepath.Rel(workspaceRoot, abs)
	if err != nil || strings.HasPrefix(relative, "..") {
		return "", fmt.Errorf("file %q is not under workspace root %q", filePath, workspaceRoot)
	}

	module := strings.TrimSuffix(filepath.ToSlash(relative), ".rs")
	module = strings.ReplaceAll(module, "/", "::")

	// mod.rs names the containing directory's module.
	module = strings.TrimSuffix(module, "::mod")
	if module == "mod" {
		module = ""
	}

	// The src directory and the crate entry points collapse into crate.
	for _, prefix := range []string{"src::", "lib::"} {
		if rest, found := strings.CutPrefix(module, prefix); found {
			module = rest
			break
		}
	}
	if module == "src" || module == "lib" || module == "main" {
		module = ""
	}

	if module == "" {
		return "crate", nil
	}
	if strings.HasPrefix(module, "crate::") || module == "crate" {
		return module, nil
	}
	return "crate::" + module, nil
}

// importPathMatches reports whether an import path could reach the
// target module: direct equality, the import naming a parent module of
// the target, or the import naming a child (importing a specific symbol
// from the module).
func importPathMatches(importPath, targetModule string) bool {
	if importPath == targetModule {
		return true
	}
	if strings.HasPrefix(targetModule, importPath+"::") {
		return true
	}
	if strings.HasPrefix(importPath, targetModule+"::") {
		return true
	}
	return false
}

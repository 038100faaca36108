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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/oldnordic/splice/span"
)

// BackupDirName is the workspace-relative directory holding backups.
const BackupDirName = ".splice-backup"

// BackupEntry records one backed-up file.
type BackupEntry struct {
	// Path is the original file path relative to the workspace root.
	Path string `json:"path"`

	// Hash is the SHA-256 of the original content.
	Hash string `json:"hash"`

	// Size is the original byte count.
	Size int64 `json:"size"`

	// AfterHash is the post-patch hash, recorded when the operation
	// commits so undo can verify the file is still in the patched state.
	AfterHash string `json:"after_hash,omitempty"`
}

// BackupManifest describes one backup operation, persisted as
// .splice-backup/<operation_id>/manifest.json.
type BackupManifest struct {
	// OperationID scopes the backup directory.
	OperationID string `json:"operation_id"`

	// CreatedAt is the RFC 3339 creation timestamp.
	CreatedAt string `json:"created_at"`

	// Files are the backed-up entries.
	Files []BackupEntry `json:"files"`

	// backupDir is the absolute backup directory (not serialized; it is
	// re-derived from the manifest location on load).
	backupDir string
}

// ManifestPath returns the manifest.json location for this backup.
func (m *BackupManifest) ManifestPath() string {
	return filepath.Join(m.backupDir, "manifest.json")
}

// BackupDir returns the backup directory.
func (m *BackupManifest) BackupDir() string {
	return m.backupDir
}

// Save writes the manifest into the backup directory.
func (m *BackupManifest) Save() error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize manifest: %w", err)
	}
	if err := os.WriteFile(m.ManifestPath(), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a manifest from disk, deriving the backup directory
// from the manifest's location.
func LoadManifest(manifestPath string) (*BackupManifest, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m BackupManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	m.backupDir = filepath.Dir(manifestPath)
	return &m, nil
}

// BackupWriter copies files aside before an operation mutates them.
type BackupWriter struct {
	manifest      *BackupManifest
	workspaceRoot string
}

// NewBackupWriter creates a backup directory for operationID under the
// workspace root. An empty operationID generates a UUID.
func NewBackupWriter(workspaceRoot, operationID string) (*BackupWriter, error) {
	if operationID == "" {
		operationID = uuid.New().String()
	}

	backupDir := filepath.Join(workspaceRoot, BackupDirName, operationID)
	if err := os.MkdirAll(backupDir, 0o750); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	return &BackupWriter{
		manifest: &BackupManifest{
			OperationID: operationID,
			CreatedAt:   time.Now().UTC().Format(time.RFC3339),
			backupDir:   backupDir,
		},
		workspaceRoot: workspaceRoot,
	}, nil
}

// OperationID returns the backup's operation identifier.
func (w *BackupWriter) OperationID() string {
	return w.manifest.OperationID
}

// BackupFile copies one file into the backup directory, preserving its
// workspace-relative directory structure, and records a manifest entry.
func (w *BackupWriter) BackupFile(filePath string) error {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read %s for backup: %w", filePath, err)
	}

	relative, err := filepath.Rel(w.workspaceRoot, filePath)
	if err != nil || len(relative) >= 2 && relative[:2] == ".." {
		return fmt.Errorf("file %q is not under workspace root %q", filePath, w.workspaceRoot)
	}

	backupPath := filepath.Join(w.manifest.backupDir, relative)
	if err := os.MkdirAll(filepath.Dir(backupPath), 0o750); err != nil {
		return fmt.Errorf("create backup subdirectory: %w", err)
	}
	if err := os.WriteFile(backupPath, content, 0o644); err != nil {
		return fmt.Errorf("write backup copy: %w", err)
	}

	w.manifest.Files = append(w.manifest.Files, BackupEntry{
		Path: relative,
		Hash: span.Hash(content),
		Size: int64(len(content)),
	})

	return nil
}

// RecordAfterHash stores the post-commit hash for the entry matching the
// workspace-relative or absolute path.
func (w *BackupWriter) RecordAfterHash(filePath, afterHash string) {
	relative, err := filepath.Rel(w.workspaceRoot, filePath)
	if err != nil {
		relative = filePath
	}
	for i := range w.manifest.Files {
		if w.manifest.Files[i].Path == relative {
			w.manifest.Files[i].AfterHash = afterHash
		}
	}
}

// Finalize writes the manifest and returns its path.
func (w *BackupWriter) Finalize() (string, error) {
	if err := w.manifest.Save(); err != nil {
		return "", err
	}
	return w.manifest.ManifestPath(), nil
}

// RestoreOptions controls Restore behavior.
type RestoreOptions struct {
	// Force restores every file regardless of its current hash.
	// Without it, a file is restored only when its current content
	// matches the manifest's recorded after-hash (i.e. the file is
	// still in the patched state the backup belongs to).
	Force bool
}

// Restore copies backed-up bytes over their original locations.
//
// Every backup copy is hash-verified against the manifest before any
// write. Returns the number of files restored.
func Restore(manifestPath, workspaceRoot string, opts RestoreOptions) (int, error) {
	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return 0, err
	}

	contents := make([][]byte, len(manifest.Files))
	for i, entry := range manifest.Files {
		backupPath := filepath.Join(manifest.backupDir, entry.Path)

		content, err := os.ReadFile(backupPath)
		if err != nil {
			return 0, fmt.Errorf("backup copy missing for %s: %w", entry.Path, err)
		}

		if actual := span.Hash(content); actual != entry.Hash {
			return 0, fmt.Errorf("hash mismatch for %s: manifest %s, backup copy %s",
				entry.Path, entry.Hash, actual)
		}
		contents[i] = content
	}

	restored := 0
	for i, entry := range manifest.Files {
		originalPath := filepath.Join(workspaceRoot, entry.Path)
		content := contents[i]

		if !opts.Force {
			current, err := os.ReadFile(originalPath)
			if err == nil && entry.AfterHash != "" && span.Hash(current) != entry.AfterHash {
				// The file moved on since the patch; refuse silently
				// overwriting unrelated edits.
				continue
			}
		}

		if err := os.MkdirAll(filepath.Dir(originalPath), 0o750); err != nil {
			return restored, fmt.Errorf("create directory for %s: %w", entry.Path, err)
		}
		if err := atomicWriteFile(originalPath, content, 0o644); err != nil {
			return restored, fmt.Errorf("restore %s: %w", entry.Path, err)
		}
		restored++
	}

	return restored, nil
}

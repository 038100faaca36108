// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package span

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBoundary(t *testing.T) {
	// "héllo" — 'é' is two bytes (0xC3 0xA9) at offsets 1..3.
	buf := []byte("h\xc3\xa9llo")

	tests := []struct {
		name   string
		offset int
		want   bool
	}{
		{"start of buffer", 0, true},
		{"end of buffer", len(buf), true},
		{"start of multibyte rune", 1, true},
		{"inside multibyte rune", 2, false},
		{"after multibyte rune", 3, true},
		{"negative offset", -1, false},
		{"past end", len(buf) + 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBoundary(buf, tt.offset))
		})
	}
}

func TestCheckSpan(t *testing.T) {
	buf := []byte("h\xc3\xa9llo")

	require.NoError(t, CheckSpan("f.rs", buf, 0, len(buf)))
	require.NoError(t, CheckSpan("f.rs", buf, 1, 3))

	var unaligned *UnalignedSpanError
	err := CheckSpan("f.rs", buf, 2, 3)
	require.Error(t, err)
	require.True(t, errors.As(err, &unaligned))
	assert.Equal(t, 2, unaligned.Offset)
	assert.Equal(t, "f.rs", unaligned.File)

	var invalid *InvalidSpanError
	err = CheckSpan("f.rs", buf, 4, 2)
	require.True(t, errors.As(err, &invalid))

	err = CheckSpan("f.rs", buf, 0, len(buf)+1)
	require.True(t, errors.As(err, &invalid))
}

func TestReplaceRange(t *testing.T) {
	buf := []byte("fn greet() {}")

	out, err := ReplaceRange("f.rs", buf, 3, 8, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "fn hello() {}", string(out))

	// Original buffer untouched.
	assert.Equal(t, "fn greet() {}", string(buf))

	// Deletion (empty replacement).
	out, err = ReplaceRange("f.rs", buf, 0, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, "greet() {}", string(out))

	// Insertion at a point (start == end).
	out, err = ReplaceRange("f.rs", buf, 0, 0, []byte("pub "))
	require.NoError(t, err)
	assert.Equal(t, "pub fn greet() {}", string(out))
}

func TestReplaceRangeRejectsUnaligned(t *testing.T) {
	buf := []byte("h\xc3\xa9llo")
	_, err := ReplaceRange("f.rs", buf, 0, 2, []byte("x"))
	var unaligned *UnalignedSpanError
	require.True(t, errors.As(err, &unaligned))
}

func TestHash(t *testing.T) {
	// Stable digest for empty input.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Hash(nil))
	assert.NotEqual(t, Hash([]byte("a")), Hash([]byte("b")))
}

func TestLineCol(t *testing.T) {
	buf := []byte("one\ntwo\nthree")

	line, col := LineCol(buf, 0)
	assert.Equal(t, 1, line)
	assert.Equal(t, 0, col)

	line, col = LineCol(buf, 4) // 't' of "two"
	assert.Equal(t, 2, line)
	assert.Equal(t, 0, col)

	line, col = LineCol(buf, 10) // 'r' of "three"
	assert.Equal(t, 3, line)
	assert.Equal(t, 2, col)

	// Clamped past end.
	line, _ = LineCol(buf, 1000)
	assert.Equal(t, 3, line)
}

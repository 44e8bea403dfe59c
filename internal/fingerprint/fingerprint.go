// Package fingerprint computes content fingerprints for change detection.
//
// A fingerprint is the lowercase hex SHA-256 of a file's raw bytes. It is
// deterministic across platforms and Go versions, which is what makes the
// hash store a pure function of disk content: the same bytes always produce
// the same fingerprint, so comparing stored and current fingerprints is
// equivalent to comparing file contents.
//
// This is a leaf package with zero dependencies beyond stdlib.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Bytes returns the fingerprint of b.
func Bytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// File returns the fingerprint of the file at fsPath using streaming I/O.
func File(fsPath string) (string, error) {
	f, err := os.Open(fsPath)
	if err != nil {
		return "", fmt.Errorf("opening %s for fingerprinting: %w", fsPath, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("fingerprinting %s: %w", fsPath, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Package sqlfile loads dagrator migrations from SQL files.
//
// A migration is a pair of files named after its UUID:
//
//	<uuid>.do.<name>.sql    applied when migrating up
//	<uuid>.undo.<name>.sql  applied when reverting (optional)
//
// Leading comment lines of the do file declare the description and the
// migrations it depends on:
//
//	-- description: Create the users table
//	-- depends: 0190f2a1-6c1e-7a01-8000-000000000001
//
// Files not following the naming scheme are ignored.
package sqlfile

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"

	"github.com/bcomnes/dagrator"
	"github.com/bcomnes/dagrator/sqladapter"
)

// ErrNoUndo is returned when reverting a migration that has no undo file.
var ErrNoUndo = errors.New("no undo file")

// Migration is a migration backed by a do file and an optional undo file.
type Migration struct {
	dagrator.Meta

	// Name is the kebab-case name part of the file names.
	Name string

	DoFile   string
	UndoFile string

	doSQL   string
	undoSQL string
	md5     string
}

var _ sqladapter.Migration = (*Migration)(nil)
var _ sqladapter.Checksummer = (*Migration)(nil)

// Checksum returns the MD5 checksum of the do file.
func (m *Migration) Checksum() string {
	return m.md5
}

// SQL returns the contents of the do and undo files.
func (m *Migration) SQL() (do, undo string) {
	return m.doSQL, m.undoSQL
}

// Up runs the do file.
func (m *Migration) Up(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, m.doSQL)
	return err
}

// Down runs the undo file.
func (m *Migration) Down(ctx context.Context, tx *sql.Tx) error {
	if m.UndoFile == "" {
		return fmt.Errorf("migration %s: %w", m.ID(), ErrNoUndo)
	}
	_, err := tx.ExecContext(ctx, m.undoSQL)
	return err
}

var newlineRe = regexp.MustCompile(`\r\n|\r|\n`)

// convertLineEnding converts all newline variations in content to the target style.
func convertLineEnding(content, lineEnding string) (string, error) {
	var target string
	switch lineEnding {
	case "LF":
		target = "\n"
	case "CR":
		target = "\r"
	case "CRLF":
		target = "\r\n"
	default:
		return "", fmt.Errorf("newline must be one of: LF, CR, CRLF")
	}
	return newlineRe.ReplaceAllString(content, target), nil
}

// checksum computes the MD5 checksum of the content after converting line endings if set.
func checksum(content, lineEnding string) (string, error) {
	if lineEnding != "" {
		var err error
		content, err = convertLineEnding(content, lineEnding)
		if err != nil {
			return "", err
		}
	}
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:]), nil
}

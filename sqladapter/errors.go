package sqladapter

import (
	"fmt"

	"github.com/google/uuid"
)

// ChecksumError reports an applied migration whose content changed since it
// ran.
type ChecksumError struct {
	ID      uuid.UUID
	Stored  string
	Current string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("MD5 checksum failed for migration %s: recorded %s, now %s", e.ID, e.Stored, e.Current)
}

package services

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CaseNumber returns a human-facing identifier like CASE-2026-001234. The
// numeric part is drawn uniformly from the six-digit range; uniqueness is
// enforced by the database index, not here.
func CaseNumber() string {
	year := time.Now().Year()
	num := rand.IntN(900000) + 100000
	return fmt.Sprintf("CASE-%d-%06d", year, num)
}

// ReferenceNumber returns an opaque identifier like REF-3FA85F64, the first
// eight hex characters of a fresh UUID uppercased.
func ReferenceNumber() string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "REF-" + strings.ToUpper(token[:8])
}

// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Credential is one stored secret with its security metadata.
// SecretEnc always holds ciphertext produced by the cipher; plaintext is never persisted.
type Credential struct {
	ID       uuid.UUID // PK
	UserID   uuid.UUID // owner
	Name     string    // display name (site/service)
	URL      string    // optional
	Username string    // optional
	Email    string    // optional
	Notes    string    // optional
	LogoURL  string    // optional
	Favorite bool

	SecretEnc string // ciphertext of the secret

	SecurityScore *int // 0-100, nil until first audit
	NeedsUpdate   bool

	Breached         *bool // nil until first breach check
	BreachCount      int
	LastBreachCheck  *time.Time
	LastSecretChange time.Time // last explicit password change

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChangeType tags a history entry with the mutation that produced it.
type ChangeType string

const (
	ChangeCreated  ChangeType = "CREATED"
	ChangeUpdated  ChangeType = "UPDATED"
	ChangeRestored ChangeType = "RESTORED"
)

// HistoryEntry is an immutable snapshot taken before a credential mutation.
// Entries are never mutated or reordered; only bulk-deleted under retention.
type HistoryEntry struct {
	ID           uuid.UUID
	CredentialID uuid.UUID
	OldSecretEnc string // prior ciphertext
	OldEmail     string
	OldUsername  string
	OldURL       string
	ChangeType   ChangeType
	ChangedBy    uuid.UUID // acting user
	ChangedAt    time.Time
	IPAddress    string // optional origin address
}

// AuditSnapshot is a persisted point-in-time aggregate for one user's vault.
type AuditSnapshot struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	OverallScore    int
	TotalPasswords  int
	WeakPasswords   int
	Duplicates      int
	OldPasswords    int
	StrongPasswords int
	CreatedAt       time.Time
}

// IssueType classifies an audit finding.
type IssueType string

const (
	IssueWeak      IssueType = "weak"
	IssueDuplicate IssueType = "duplicate"
	IssueOld       IssueType = "old"
)

// Severity ranks an audit finding. Lower rank sorts first.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rank returns the sort rank of a severity: critical(0) < warning(1) < info(2).
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// SecurityIssue is one audit finding. Derived fresh on each run, not persisted.
type SecurityIssue struct {
	CredentialID uuid.UUID
	Type         IssueType
	Severity     Severity
	Name         string // subject credential display name
	Message      string
}

// AuditResult is the outcome of one full vault analysis.
type AuditResult struct {
	OverallScore    int
	TotalPasswords  int
	WeakPasswords   int
	Duplicates      int
	OldPasswords    int
	StrongPasswords int
	Issues          []SecurityIssue
}

// BreachedItem identifies one breached credential in a scan tally.
type BreachedItem struct {
	ID    uuid.UUID
	Name  string
	Count int
}

// ScanResult is the tally of one sequential breach scan.
// Per-item failures are counted in Failed; they never abort the scan.
type ScanResult struct {
	Scanned  int
	Breached int
	Failed   int
	Items    []BreachedItem
}

// BreachStats summarizes persisted breach state for one user.
type BreachStats struct {
	TotalPasswords    int
	BreachedPasswords int
	LastScan          *time.Time
	BreachedList      []BreachedItem
}

// Filter narrows a credential listing.
type Filter struct {
	Search       string // free-text over name/email/username
	FavoriteOnly bool
}

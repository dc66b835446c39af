package vault

import (
	"time"

	"github.com/ladzaretti/vaultagent/vault/payload"
)

// IdentityCategory enumerates the categories an [Identity] can belong to.
type IdentityCategory string

const (
	CategoryPersonal  IdentityCategory = "personal"
	CategoryWork      IdentityCategory = "work"
	CategorySocial    IdentityCategory = "social"
	CategoryFinancial IdentityCategory = "financial"
	CategoryGaming    IdentityCategory = "gaming"
	CategoryCustom    IdentityCategory = "custom"
)

// SecurityLevel enumerates how sensitive a credential is, used by the SSH
// agent's confirmation policy and by UI surfaces outside this module.
type SecurityLevel string

const (
	LevelCritical SecurityLevel = "critical"
	LevelHigh     SecurityLevel = "high"
	LevelMedium   SecurityLevel = "medium"
	LevelLow      SecurityLevel = "low"
)

// Identity is a named persona owning zero or more credentials.
type Identity struct {
	ID         string
	Name       string
	Category   IdentityCategory
	Contact    string
	Tags       []string
	Attributes map[string]string
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Credential is the decrypted, application-facing view of a vault
// credential row: plaintext-safe fields plus the decoded payload. It is
// never persisted as-is - [Vault] reseals Payload into encrypted_data on
// every write.
type Credential struct {
	ID            string
	IdentityID    string
	Name          string
	Kind          payload.Kind
	SecurityLevel SecurityLevel
	URL           string
	Username      string
	Notes         string
	Tags          []string
	Payload       payload.Payload
	Favorite      bool
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastAccessed  *time.Time
}

// Package artifact defines the canonical data model: rules, slash commands
// and agent skills, plus the naming and hashing primitives shared by the
// import and sync pipelines.
package artifact

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tidewell/loom/internal/messages"
)

// Type classifies an artifact. The set is closed; switches over Type must
// handle every variant.
type Type string

const (
	TypeRule    Type = "rule"
	TypeCommand Type = "command"
	TypeSkill   Type = "skill"
)

// ParseType converts a stored string into a Type.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeRule, TypeCommand, TypeSkill:
		return Type(s), nil
	default:
		return "", fmt.Errorf(messages.StoreInvalidTypeFmt, s)
	}
}

// Scope controls where an artifact is projected: user-wide or per workspace.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeLocal  Scope = "local"
)

// ParseScope converts a stored string into a Scope.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeGlobal, ScopeLocal:
		return Scope(s), nil
	default:
		return "", fmt.Errorf(messages.StoreInvalidScopeFmt, s)
	}
}

// Artifact is one canonical record owned by the store.
type Artifact struct {
	ID              string    `json:"id" yaml:"id"`
	Name            string    `json:"name" yaml:"name"`
	Description     string    `json:"description,omitempty" yaml:"description,omitempty"`
	Content         string    `json:"content" yaml:"-"`
	Type            Type      `json:"type" yaml:"type"`
	Scope           Scope     `json:"scope" yaml:"scope"`
	TargetPaths     []string  `json:"targetPaths,omitempty" yaml:"targetPaths,omitempty"`
	EnabledAdapters []string  `json:"enabledAdapters" yaml:"enabledAdapters"`
	Enabled         bool      `json:"enabled" yaml:"enabled"`
	CreatedAt       time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// NewID returns a fresh ULID for artifacts and import candidates.
func NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// IdentityHash digests the fields migration verification compares. Two
// artifacts with the same identity hash are interchangeable across storage
// representations.
func (a *Artifact) IdentityHash() string {
	return ContentHash(a.ID + "\x00" + a.Name + "\x00" + a.Content)
}

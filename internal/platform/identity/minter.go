// Package identity mints deterministic resource ids from semantic
// identifiers. An id is a version 3 UUID computed against a namespace that is
// itself a version 3 UUID of a source domain such as "gdc.cancer.gov".
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bmeg/fhirizer/internal/platform/fhir"
)

// Identifier use codes.
const (
	UseOfficial  = "official"
	UseSecondary = "secondary"
)

// DefaultDomain seeds the namespace when no domain is configured.
const DefaultDomain = "gdc.cancer.gov"

var (
	ErrMissingIdentifier   = errors.New("missing required identifier")
	ErrMissingResourceType = errors.New("resource type is required")
)

// Minter computes ids. It holds no mutable state and is safe for
// concurrent use.
type Minter struct {
	namespace uuid.UUID
}

// NewMinter returns a Minter whose namespace is derived from domain.
func NewMinter(domain string) *Minter {
	if domain == "" {
		domain = DefaultDomain
	}
	return &Minter{namespace: NamespaceFor(domain)}
}

// NewMinterWithNamespace returns a Minter using ns directly.
func NewMinterWithNamespace(ns uuid.UUID) *Minter {
	return &Minter{namespace: ns}
}

// MinterFor accepts either a namespace UUID, used as is, or a domain that
// NewMinter derives the namespace from.
func MinterFor(namespace string) *Minter {
	if ns, err := uuid.Parse(namespace); err == nil {
		return NewMinterWithNamespace(ns)
	}
	return NewMinter(namespace)
}

// NamespaceFor derives the namespace UUID for a domain string.
func NamespaceFor(domain string) uuid.UUID {
	return uuid.NewMD5(uuid.NameSpaceDNS, []byte(domain))
}

// Namespace returns the namespace ids are minted against.
func (m *Minter) Namespace() uuid.UUID { return m.namespace }

// Mint is MintID for a single identifier.
func (m *Minter) Mint(id fhir.Identifier, resourceType, projectID string) (string, error) {
	return m.MintID([]fhir.Identifier{id}, resourceType, projectID)
}

// MintID hashes ids, in order, together with resourceType and projectID.
// Permuting ids may change the result.
func (m *Minter) MintID(ids []fhir.Identifier, resourceType, projectID string) (string, error) {
	name, err := Canonical(ids, resourceType, projectID)
	if err != nil {
		return "", err
	}
	return uuid.NewMD5(m.namespace, []byte(name)).String(), nil
}

// Canonical renders the string that MintID hashes:
// "<project>/<resourceType>/<system>|<value>|<use>,...".
func Canonical(ids []fhir.Identifier, resourceType, projectID string) (string, error) {
	if resourceType == "" {
		return "", ErrMissingResourceType
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("%s: %w", resourceType, ErrMissingIdentifier)
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		if strings.TrimSpace(id.Value) == "" {
			return "", fmt.Errorf("%s %s: %w", resourceType, id.System, ErrMissingIdentifier)
		}
		parts[i] = id.System + "|" + id.Value + "|" + id.Use
	}
	return projectID + "/" + resourceType + "/" + strings.Join(parts, ","), nil
}

// Official builds an official-use identifier.
func Official(system, value string) fhir.Identifier {
	return fhir.Identifier{System: system, Value: value, Use: UseOfficial}
}

// Secondary builds a secondary-use identifier.
func Secondary(system, value string) fhir.Identifier {
	return fhir.Identifier{System: system, Value: value, Use: UseSecondary}
}

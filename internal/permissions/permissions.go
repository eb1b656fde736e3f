// Package permissions defines project roles, capabilities and the role lattice.
package permissions

import (
	"fmt"
	"sort"
	"strings"
)

// Role is the per-project access level stored on a grant.
type Role string

const (
	RoleView   Role = "view"
	RoleTest   Role = "test"
	RoleUpload Role = "upload"
	RoleOwner  Role = "owner"
)

// Capability is a single operation a role may perform on a project.
type Capability string

const (
	CapView    Capability = "view"
	CapUpload  Capability = "upload"
	CapTest    Capability = "test"
	CapProtect Capability = "protect"
	CapInvite  Capability = "invite"
	CapEdit    Capability = "edit"
	CapDelete  Capability = "delete"
)

// Definition describes a capability for clients.
type Definition struct {
	Key   Capability `json:"key"`
	Label string     `json:"label"`
}

// roleCapabilities is the role lattice; upload implies test, owner holds everything.
var roleCapabilities = map[Role]map[Capability]struct{}{
	RoleView:   capabilitySet(CapView),
	RoleTest:   capabilitySet(CapView, CapTest),
	RoleUpload: capabilitySet(CapView, CapUpload, CapTest),
	RoleOwner:  capabilitySet(CapView, CapUpload, CapTest, CapProtect, CapInvite, CapEdit, CapDelete),
}

func capabilitySet(caps ...Capability) map[Capability]struct{} {
	out := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		out[c] = struct{}{}
	}
	return out
}

// ParseRole parses a role name, case-insensitively.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("invalid role: %q", raw)
	}
	return role, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// Can reports whether r grants the capability. Unknown roles grant nothing.
func (r Role) Can(c Capability) bool {
	caps, ok := roleCapabilities[r]
	if !ok {
		return false
	}
	_, allowed := caps[c]
	return allowed
}

// Capabilities returns the sorted capabilities of r.
func (r Role) Capabilities() []Capability {
	caps := roleCapabilities[r]
	out := make([]Capability, 0, len(caps))
	for c := range caps {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Roles returns all roles from least to most privileged.
func Roles() []Role {
	return []Role{RoleView, RoleTest, RoleUpload, RoleOwner}
}

// Definitions returns a copy of all capability definitions.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// definitions is the ordered list of capability definitions.
var definitions = []Definition{
	{Key: CapView, Label: "View branches and download builds"},
	{Key: CapUpload, Label: "Upload builds and edit build notes"},
	{Key: CapTest, Label: "Mark builds tested"},
	{Key: CapProtect, Label: "Protect branches"},
	{Key: CapInvite, Label: "Manage members"},
	{Key: CapEdit, Label: "Edit project settings"},
	{Key: CapDelete, Label: "Delete the project"},
}

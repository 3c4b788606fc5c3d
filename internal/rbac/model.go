package rbac

import "sort"

type roleEntry struct {
	description string
	wildcard    bool
	tokens      map[string]struct{}
}

// PermissionModel is the immutable role→permission graph built from a policy
// document. It is constructed once at startup and shared by reference; there
// is no ambient global and no runtime mutation. A configuration change is a
// new model.
type PermissionModel struct {
	roles        map[string]roleEntry
	tokens       map[string]struct{}
	descriptions map[string]string
}

// HasPermission reports whether any of the roles carries the permission.
// A wildcard role short-circuits to true; otherwise tokens are compared for
// exact equality, no prefix matching. Unknown role names contribute nothing:
// they can only arrive on principal data, policy-side unknowns fail the load.
func (m *PermissionModel) HasPermission(roles []string, permission string) bool {
	if permission == "" {
		return false
	}
	for _, name := range roles {
		entry, ok := m.roles[name]
		if !ok {
			continue
		}
		if entry.wildcard {
			return true
		}
		if _, ok := entry.tokens[permission]; ok {
			return true
		}
	}
	return false
}

// KnownToken reports whether the token exists in the permission dictionary.
func (m *PermissionModel) KnownToken(token string) bool {
	_, ok := m.tokens[token]
	return ok
}

// Role returns the loaded definition for name.
func (m *PermissionModel) Role(name string) (Role, bool) {
	entry, ok := m.roles[name]
	if !ok {
		return Role{}, false
	}
	perms := make([]string, 0, len(entry.tokens)+1)
	if entry.wildcard {
		perms = append(perms, Wildcard)
	}
	for token := range entry.tokens {
		perms = append(perms, token)
	}
	sort.Strings(perms)
	return Role{Name: name, Description: entry.description, Permissions: perms}, true
}

// Describe returns the dictionary description for a permission token.
func (m *PermissionModel) Describe(token string) string {
	return m.descriptions[token]
}

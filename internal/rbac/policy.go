package rbac

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/halcyon-health/halcyon/internal/shared"
)

// PolicyDocument is the startup role/permission configuration. Roles reference
// permission tokens; every referenced token must exist in the dictionary,
// otherwise loading fails and the process must not start. Groups are
// informational aliases with no runtime effect.
type PolicyDocument struct {
	Roles map[string]struct {
		Description string   `yaml:"description"`
		Permissions []string `yaml:"permissions"`
	} `yaml:"roles"`
	Permissions map[string]string   `yaml:"permissions"`
	Groups      map[string][]string `yaml:"groups"`
}

// LoadPolicy reads and validates the policy document at path.
func LoadPolicy(path string) (*PermissionModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rbac: read policy %s: %w", path, err)
	}
	return ParsePolicy(data)
}

// ParsePolicy validates a policy document and builds the immutable model.
func ParsePolicy(data []byte) (*PermissionModel, error) {
	var doc PolicyDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("rbac: parse policy: %v: %w", err, shared.ErrConfig)
	}
	if len(doc.Roles) == 0 {
		return nil, fmt.Errorf("rbac: policy defines no roles: %w", shared.ErrConfig)
	}

	known := make(map[string]struct{}, len(doc.Permissions))
	for token := range doc.Permissions {
		token = strings.TrimSpace(token)
		if token == "" || token == Wildcard {
			return nil, fmt.Errorf("rbac: invalid token in permission dictionary: %w", shared.ErrConfig)
		}
		known[token] = struct{}{}
	}

	roles := make(map[string]roleEntry, len(doc.Roles))
	for name, spec := range doc.Roles {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("rbac: empty role name: %w", shared.ErrConfig)
		}
		entry := roleEntry{
			description: spec.Description,
			tokens:      make(map[string]struct{}, len(spec.Permissions)),
		}
		for _, token := range spec.Permissions {
			token = strings.TrimSpace(token)
			if token == Wildcard {
				entry.wildcard = true
				continue
			}
			if _, ok := known[token]; !ok {
				return nil, fmt.Errorf("rbac: role %q references unknown permission %q: %w", name, token, shared.ErrConfig)
			}
			entry.tokens[token] = struct{}{}
		}
		roles[name] = entry
	}

	for group, tokens := range doc.Groups {
		for _, token := range tokens {
			if _, ok := known[strings.TrimSpace(token)]; !ok {
				return nil, fmt.Errorf("rbac: group %q references unknown permission %q: %w", group, token, shared.ErrConfig)
			}
		}
	}

	return &PermissionModel{roles: roles, tokens: known, descriptions: doc.Permissions}, nil
}

// RoleNames lists the roles defined by the loaded policy, sorted.
func (m *PermissionModel) RoleNames() []string {
	names := make([]string, 0, len(m.roles))
	for name := range m.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

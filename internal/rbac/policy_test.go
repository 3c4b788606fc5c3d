package rbac

import (
	"errors"
	"testing"

	"github.com/halcyon-health/halcyon/internal/shared"
)

const validPolicy = `
roles:
  admin:
    description: Full access
    permissions: ["*"]
  therapist:
    description: Clinical staff
    permissions: [read:phi, write:phi, read:schedule]
  auditor:
    description: Compliance reviewer
    permissions: [read:audit, export:audit]
permissions:
  read:phi: Read protected health information
  write:phi: Write protected health information
  read:schedule: Read appointment schedules
  read:audit: Read the audit trail
  export:audit: Export the audit trail
groups:
  phi: [read:phi, write:phi]
`

func TestParsePolicyValid(t *testing.T) {
	model, err := ParsePolicy([]byte(validPolicy))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	names := model.RoleNames()
	if len(names) != 3 {
		t.Fatalf("expected 3 roles, got %v", names)
	}
	if !model.KnownToken("read:phi") {
		t.Fatal("expected read:phi in dictionary")
	}
	role, ok := model.Role("therapist")
	if !ok || len(role.Permissions) != 3 {
		t.Fatalf("unexpected therapist role %+v ok=%v", role, ok)
	}
	if model.Describe("read:phi") == "" {
		t.Fatal("expected description for read:phi")
	}
}

func TestParsePolicyUnknownTokenIsFatal(t *testing.T) {
	doc := `
roles:
  nurse:
    permissions: [read:phi, read:vitals]
permissions:
  read:phi: Read PHI
`
	if _, err := ParsePolicy([]byte(doc)); !errors.Is(err, shared.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestParsePolicyUnknownGroupTokenIsFatal(t *testing.T) {
	doc := `
roles:
  nurse:
    permissions: [read:phi]
permissions:
  read:phi: Read PHI
groups:
  ghosts: [read:souls]
`
	if _, err := ParsePolicy([]byte(doc)); !errors.Is(err, shared.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestParsePolicyNoRolesIsFatal(t *testing.T) {
	if _, err := ParsePolicy([]byte(`permissions: {a: b}`)); !errors.Is(err, shared.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestParsePolicyWildcardInDictionaryIsFatal(t *testing.T) {
	doc := `
roles:
  admin:
    permissions: ["*"]
permissions:
  "*": Everything
`
	if _, err := ParsePolicy([]byte(doc)); !errors.Is(err, shared.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestParsePolicyMalformedYAML(t *testing.T) {
	if _, err := ParsePolicy([]byte("roles: [")); !errors.Is(err, shared.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestHasPermission(t *testing.T) {
	model, err := ParsePolicy([]byte(validPolicy))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	cases := []struct {
		name  string
		roles []string
		token string
		want  bool
	}{
		{"wildcard short-circuits", []string{"admin"}, "anything:at-all", true},
		{"exact match", []string{"therapist"}, "read:phi", true},
		{"union over roles", []string{"therapist", "auditor"}, "export:audit", true},
		{"missing token", []string{"therapist"}, "export:audit", false},
		{"no prefix matching", []string{"therapist"}, "read", false},
		{"unknown role ignored", []string{"intern"}, "read:phi", false},
		{"empty roles", nil, "read:phi", false},
		{"empty token", []string{"admin"}, "", false},
	}
	for _, tc := range cases {
		if got := model.HasPermission(tc.roles, tc.token); got != tc.want {
			t.Fatalf("%s: HasPermission(%v, %q) = %v, want %v", tc.name, tc.roles, tc.token, got, tc.want)
		}
	}
}

package authz

import (
	"errors"
	"testing"

	"credvault.org/internal/apperr"
)

func TestMergeUnionsBothScopes(t *testing.T) {
	coarse := Require(SetOf("Admin"), SetOf())
	fine := Require(SetOf("Team Leader", "Team Member"), SetOf("View Aws Credentials"))

	merged, err := Merge(coarse, fine)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	for _, role := range []string{"Admin", "Team Leader", "Team Member"} {
		if !merged.Roles.contains(role) {
			t.Fatalf("merged roles missing %s: %v", role, merged.Roles.Values)
		}
	}
	if len(merged.Permissions.Values) != 1 {
		t.Fatalf("unexpected permissions: %v", merged.Permissions.Values)
	}
}

func TestMergeDeduplicates(t *testing.T) {
	merged, err := Merge(Require(SetOf("Admin"), SetOf("X")), Require(SetOf("Admin"), SetOf("X")))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(merged.Roles.Values) != 1 || len(merged.Permissions.Values) != 1 {
		t.Fatalf("expected deduplicated sets, got %v / %v", merged.Roles.Values, merged.Permissions.Values)
	}
}

func TestUndeclaredMetadataIsConfigurationError(t *testing.T) {
	cases := []struct {
		name         string
		coarse, fine Rule
	}{
		{"coarse roles missing", Rule{Permissions: SetOf()}, Require(SetOf(), SetOf())},
		{"coarse permissions missing", Rule{Roles: SetOf()}, Require(SetOf(), SetOf())},
		{"fine roles missing", Require(SetOf(), SetOf()), Rule{Permissions: SetOf()}},
		{"fine permissions missing", Require(SetOf(), SetOf()), Rule{Roles: SetOf()}},
		{"nothing declared", Rule{}, Rule{}},
	}
	for _, c := range cases {
		if _, err := Merge(c.coarse, c.fine); !errors.Is(err, apperr.ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", c.name, err)
		}
	}
}

func TestExplicitlyEmptyAdmitsAnyAuthenticatedCaller(t *testing.T) {
	merged, err := Merge(Require(SetOf(), SetOf()), Require(SetOf(), SetOf()))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := merged.Authorize("Auditor", nil); err != nil {
		t.Fatalf("expected admit, got %v", err)
	}
}

func TestRoleMismatchRejectsRegardlessOfPermissions(t *testing.T) {
	merged, err := Merge(Require(SetOf("Admin"), SetOf()), Require(SetOf(), SetOf()))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	err = merged.Authorize("Team Member", []string{"Create Aws Credentials", "Delete Aws Credentials"})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestPermissionSupersetRequired(t *testing.T) {
	merged, err := Merge(
		Require(SetOf("Admin"), SetOf()),
		Require(SetOf(), SetOf("Create Aws Credentials", "View Aws Credentials")),
	)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := merged.Authorize("Admin", []string{"Create Aws Credentials"}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden on missing permission, got %v", err)
	}
	if err := merged.Authorize("Admin", []string{"Create Aws Credentials", "View Aws Credentials", "Extra"}); err != nil {
		t.Fatalf("superset must admit, got %v", err)
	}
}

func TestPublicShortCircuitsDeclarationChecks(t *testing.T) {
	merged, err := Merge(Rule{}, Public())
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := merged.Authorize("", nil); err != nil {
		t.Fatalf("public rule must admit, got %v", err)
	}
}

func TestNoImplicitAdminBypass(t *testing.T) {
	merged, err := Merge(
		Require(SetOf("Admin"), SetOf()),
		Require(SetOf(), SetOf("View Audit Logs")),
	)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := merged.Authorize("Admin", nil); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("admin without permission must be rejected, got %v", err)
	}
}

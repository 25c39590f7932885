package domain_test

import (
	"errors"
	"testing"

	"github.com/campuskit/identity-service/internal/domain"
)

func TestParseRole(t *testing.T) {
	t.Parallel()

	role, err := domain.ParseRole("  fee_clerk ")
	if err != nil {
		t.Fatalf("parse role failed: %v", err)
	}
	if role != domain.RoleFeeClerk {
		t.Fatalf("expected FEE_CLERK, got %s", role)
	}

	if _, err := domain.ParseRole("REGISTRAR"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown role, got %v", err)
	}
	if _, err := domain.ParseRole(""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty role, got %v", err)
	}
}

func TestRoleOneOf(t *testing.T) {
	t.Parallel()

	if !domain.RoleAdmin.OneOf(domain.RoleAdmin, domain.RoleSuperAdmin) {
		t.Fatalf("admin should pass an admin allow-list")
	}
	if domain.RoleStudent.OneOf(domain.RoleAdmin, domain.RoleSuperAdmin) {
		t.Fatalf("student must not pass an admin allow-list")
	}

	// Empty allow-list admits any valid role but still rejects garbage.
	if !domain.RoleLibrarian.OneOf() {
		t.Fatalf("valid role should pass an empty allow-list")
	}
	if domain.Role("INTRUDER").OneOf() {
		t.Fatalf("unknown role must fail even an empty allow-list")
	}
}

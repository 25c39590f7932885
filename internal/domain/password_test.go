package domain_test

import (
	"testing"

	"github.com/campuskit/identity-service/internal/domain"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		password  string
		wantError bool
	}{
		{name: "valid", password: "StrongEntry123!", wantError: false},
		{name: "too short", password: "Ab1!x", wantError: true},
		{name: "no digit", password: "StrongEntryOnly!", wantError: true},
		{name: "no upper", password: "strongentry123!", wantError: true},
		{name: "weak pattern", password: "MyPassword123!", wantError: true},
		{name: "sequential digits", password: "Abc1234567", wantError: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := domain.ValidatePassword(tc.password)
			if tc.wantError && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tc.wantError && err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
		})
	}
}

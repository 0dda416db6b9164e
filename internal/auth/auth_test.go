package auth

import (
	"context"
	"testing"
	"time"
)

func withSecret(t *testing.T, value string) {
	t.Helper()
	t.Setenv("CREDVAULT_AUTH_SECRET", value)
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)
}

func TestGenerateAndParseRoundTrip(t *testing.T) {
	withSecret(t, "test-secret")

	token, err := GenerateToken("user-1", "Admin", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("subject = %q, want user-1", claims.Subject)
	}
	if claims.Role != "Admin" {
		t.Fatalf("role = %q, want Admin", claims.Role)
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	withSecret(t, "test-secret")

	token, err := GenerateToken("user-1", "Auditor", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	tampered := token[:len(token)-2] + "xx"
	if _, err := ParseAndValidate(tampered); err == nil {
		t.Fatal("expected tampered token to be rejected")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	withSecret(t, "test-secret")

	token, err := GenerateToken("user-1", "Admin", time.Millisecond)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := ParseAndValidate(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestGenerateRequiresSecret(t *testing.T) {
	withSecret(t, "")

	if _, err := GenerateToken("user-1", "Admin", time.Minute); err == nil {
		t.Fatal("expected error without secret")
	}
}

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := HashPassword("Sup3r$ecret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword(hash, "Sup3r$ecret") {
		t.Fatal("expected matching password to verify")
	}
	if VerifyPassword(hash, "wrong") {
		t.Fatal("expected mismatched password to fail")
	}
}

func TestValidatePasswordComplexity(t *testing.T) {
	cases := []struct {
		password string
		wantErr  bool
	}{
		{"Aa1!aaaa", false},
		{"short1!", true},
		{"alllower1!", true},
		{"ALLUPPER1!", true},
		{"NoDigits!!", true},
		{"NoSymbol11", true},
	}
	for _, tc := range cases {
		err := ValidatePasswordComplexity(tc.password)
		if (err != nil) != tc.wantErr {
			t.Errorf("ValidatePasswordComplexity(%q) err=%v, wantErr=%v", tc.password, err, tc.wantErr)
		}
	}
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if _, ok := PrincipalFrom(ctx); ok {
		t.Fatal("expected no principal on fresh context")
	}
	p := Principal{UserID: "u1", Role: "Team Leader", Permissions: []string{"View Aws Credentials"}}
	ctx = WithPrincipal(ctx, p)
	got, ok := PrincipalFrom(ctx)
	if !ok {
		t.Fatal("expected principal on context")
	}
	if got.UserID != "u1" || !got.HasPermission("View Aws Credentials") {
		t.Fatalf("unexpected principal: %+v", got)
	}
	if got.HasPermission("Manage Role And Permissions") {
		t.Fatal("unexpected permission reported")
	}
}

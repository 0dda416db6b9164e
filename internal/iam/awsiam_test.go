package iam

import (
	"errors"
	"net/http"
	"testing"

	"github.com/aws/smithy-go"

	"credvault.org/internal/apperr"
)

func TestWrapErrTranslatesEntityCodes(t *testing.T) {
	missing := wrapErr("delete user", &smithy.GenericAPIError{Code: "NoSuchEntity", Message: "user not found"})
	if !errors.Is(missing, apperr.ErrNotFound) {
		t.Fatalf("NoSuchEntity should map to not-found, got %v", missing)
	}

	dup := wrapErr("create user", &smithy.GenericAPIError{Code: "EntityAlreadyExists", Message: "user exists"})
	if !errors.Is(dup, apperr.ErrConflict) {
		t.Fatalf("EntityAlreadyExists should map to conflict, got %v", dup)
	}
}

func TestWrapErrPreservesProviderCode(t *testing.T) {
	err := wrapErr("create login profile", &smithy.GenericAPIError{Code: "PasswordPolicyViolation", Message: "too weak"})
	if !errors.Is(err, apperr.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if got := apperr.MessageOf(err); got != "PasswordPolicyViolation" {
		t.Fatalf("native code must survive, got %q", got)
	}
	if got := apperr.StatusOf(err); got != http.StatusBadGateway {
		t.Fatalf("missing provider status should default to 502, got %d", got)
	}
}

func TestWrapErrNilPassesThrough(t *testing.T) {
	if err := wrapErr("list access keys", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestKeyStatusValid(t *testing.T) {
	if !KeyStatusActive.Valid() || !KeyStatusInactive.Valid() {
		t.Fatal("provider states must validate")
	}
	if KeyStatus("Suspended").Valid() {
		t.Fatal("unknown state must not validate")
	}
}

package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("name", "bad input"), http.StatusBadRequest},
		{Unauthorized("missing token"), http.StatusUnauthorized},
		{Forbidden("no role"), http.StatusForbidden},
		{NotFound("user not found"), http.StatusNotFound},
		{Conflict("aws_username", "already exists"), http.StatusConflict},
		{Configuration("missing metadata"), http.StatusInternalServerError},
		{Provider(0, "ServiceFailure", errors.New("boom")), http.StatusBadGateway},
		{Provider(409, "EntityAlreadyExists", errors.New("dup")), http.StatusConflict},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := StatusOf(c.err); got != c.want {
			t.Fatalf("StatusOf(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("create console: %w", Conflict("aws_username", "Username already exist"))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected wrapped conflict to match ErrConflict")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("conflict must not match ErrNotFound")
	}
}

func TestMessageOfNeverLeaksInternals(t *testing.T) {
	if got := MessageOf(errors.New("pq: connection reset")); got != "Internal Server Error" {
		t.Fatalf("unexpected message: %q", got)
	}
	if got := MessageOf(Configuration("route /x has no authz metadata")); got != "Feature Not Accessible" {
		t.Fatalf("configuration errors must not leak detail, got %q", got)
	}
	if got := MessageOf(Conflict("email", "Email already exist")); got != "Email already exist" {
		t.Fatalf("unexpected message: %q", got)
	}
}

package iam

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
	"github.com/aws/smithy-go"

	"credvault.org/internal/apperr"
)

type fakeSTS struct {
	in  *sts.AssumeRoleInput
	err error
}

func (f *fakeSTS) AssumeRole(_ context.Context, in *sts.AssumeRoleInput, _ ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	exp := time.Now().Add(temporarySessionDuration)
	return &sts.AssumeRoleOutput{Credentials: &ststypes.Credentials{
		AccessKeyId:     aws.String("AKIATEST"),
		SecretAccessKey: aws.String("secret"),
		SessionToken:    aws.String("session"),
		Expiration:      &exp,
	}}, nil
}

func newTestFederator(t *testing.T, stsAPI assumeRoleAPI, handler http.HandlerFunc) *AWSFederator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	f := NewAWSFederator(aws.Config{},
		WithFederationEndpoint(srv.URL),
		WithFederationHTTPClient(srv.Client()),
		WithFederationIssuer("credvault-test"))
	f.sts = stsAPI
	return f
}

func TestConsoleSessionBuildsLoginURL(t *testing.T) {
	stsAPI := &fakeSTS{}
	fed := newTestFederator(t, stsAPI, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("Action"); got != "getSigninToken" {
			t.Errorf("Action = %q", got)
		}
		if !strings.Contains(r.URL.Query().Get("Session"), "AKIATEST") {
			t.Error("session payload must carry the assumed key id")
		}
		_, _ = w.Write([]byte(`{"SigninToken":"tok-123"}`))
	})

	sess, err := fed.ConsoleSession(context.Background(), "arn:aws:iam::123456789012:role/ops", "audit-session", "ext-1")
	if err != nil {
		t.Fatalf("ConsoleSession: %v", err)
	}

	u, err := url.Parse(sess.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	q := u.Query()
	if q.Get("Action") != "login" || q.Get("SigninToken") != "tok-123" {
		t.Fatalf("login url = %s", sess.URL)
	}
	if q.Get("Destination") == "" || q.Get("Issuer") != "credvault-test" {
		t.Fatalf("login url = %s", sess.URL)
	}
	if sess.ExpiresAt.IsZero() {
		t.Fatal("session must carry its expiry")
	}

	if got := aws.ToString(stsAPI.in.ExternalId); got != "ext-1" {
		t.Fatalf("external id = %q", got)
	}
	if got := aws.ToInt32(stsAPI.in.DurationSeconds); got != 900 {
		t.Fatalf("session duration = %d seconds", got)
	}
}

func TestConsoleSessionWrapsAssumeRoleFailure(t *testing.T) {
	stsAPI := &fakeSTS{err: &smithy.GenericAPIError{Code: "AccessDenied", Message: "not allowed"}}
	fed := newTestFederator(t, stsAPI, func(w http.ResponseWriter, r *http.Request) {
		t.Error("federation endpoint must not be called when assume-role fails")
	})

	_, err := fed.ConsoleSession(context.Background(), "arn:aws:iam::123456789012:role/ops", "s", "")
	if !errors.Is(err, apperr.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestConsoleSessionRejectsBadFederationResponse(t *testing.T) {
	fed := newTestFederator(t, &fakeSTS{}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := fed.ConsoleSession(context.Background(), "arn:aws:iam::123456789012:role/ops", "s", "")
	if !errors.Is(err, apperr.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if got := apperr.StatusOf(err); got != http.StatusBadRequest {
		t.Fatalf("federation status must survive, got %d", got)
	}
}

func TestBuildPolicyDocument(t *testing.T) {
	doc, err := BuildPolicyDocument("Allow", []string{"iam:ListUsers"}, []string{"*"}, nil)
	if err != nil {
		t.Fatalf("BuildPolicyDocument: %v", err)
	}
	for _, want := range []string{`"Version":"2012-10-17"`, `"Effect":"Allow"`, `"iam:ListUsers"`} {
		if !strings.Contains(doc, want) {
			t.Fatalf("document %s missing %s", doc, want)
		}
	}

	if _, err := BuildPolicyDocument("Maybe", []string{"iam:ListUsers"}, []string{"*"}, nil); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("unknown effect must fail validation, got %v", err)
	}
	if _, err := BuildPolicyDocument("Deny", nil, []string{"*"}, nil); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("empty actions must fail validation, got %v", err)
	}
}

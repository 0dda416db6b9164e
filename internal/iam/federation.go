package iam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"credvault.org/internal/apperr"
)

const (
	defaultFederationEndpoint = "https://signin.aws.amazon.com/federation"
	defaultConsoleDestination = "https://console.aws.amazon.com/"
	defaultFederationIssuer   = "credvault"

	// Provider minimum for assumed-role sessions.
	temporarySessionDuration = 15 * time.Minute
)

// ConsoleSession is a time-boxed sign-in URL for the provider's web console.
type ConsoleSession struct {
	URL       string    `json:"console_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Federator mints temporary console sessions by assuming a provider role.
type Federator interface {
	ConsoleSession(ctx context.Context, roleARN, sessionName, externalID string) (ConsoleSession, error)
}

type assumeRoleAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// AWSFederator implements Federator over STS role assumption plus the
// federation sign-in endpoint.
type AWSFederator struct {
	sts         assumeRoleAPI
	http        *http.Client
	endpoint    string
	destination string
	issuer      string
	timeout     time.Duration
}

var _ Federator = (*AWSFederator)(nil)

// FederationOption configures AWSFederator.
type FederationOption func(*AWSFederator)

// WithFederationEndpoint overrides the sign-in endpoint.
func WithFederationEndpoint(endpoint string) FederationOption {
	return func(f *AWSFederator) {
		if endpoint != "" {
			f.endpoint = endpoint
		}
	}
}

// WithFederationHTTPClient overrides the HTTP client used for the
// sign-in token exchange.
func WithFederationHTTPClient(c *http.Client) FederationOption {
	return func(f *AWSFederator) {
		if c != nil {
			f.http = c
		}
	}
}

// WithFederationIssuer sets the Issuer parameter of the login URL.
func WithFederationIssuer(issuer string) FederationOption {
	return func(f *AWSFederator) {
		if issuer != "" {
			f.issuer = issuer
		}
	}
}

// NewAWSFederator builds a federator from a resolved AWS configuration.
func NewAWSFederator(cfg aws.Config, opts ...FederationOption) *AWSFederator {
	f := &AWSFederator{
		sts:         sts.NewFromConfig(cfg),
		http:        &http.Client{Timeout: defaultCallTimeout},
		endpoint:    defaultFederationEndpoint,
		destination: defaultConsoleDestination,
		issuer:      defaultFederationIssuer,
		timeout:     defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ConsoleSession assumes the role, exchanges the temporary credentials for
// a sign-in token and returns the console login URL. The session lasts the
// provider minimum of fifteen minutes.
func (f *AWSFederator) ConsoleSession(ctx context.Context, roleARN, sessionName, externalID string) (ConsoleSession, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	in := &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(sessionName),
		DurationSeconds: aws.Int32(int32(temporarySessionDuration / time.Second)),
	}
	if externalID != "" {
		in.ExternalId = aws.String(externalID)
	}
	out, err := f.sts.AssumeRole(ctx, in)
	if err != nil {
		return ConsoleSession{}, wrapErr("assume role", err)
	}
	creds := out.Credentials
	if creds == nil {
		return ConsoleSession{}, apperr.Provider(0, "assume role returned no credentials", nil)
	}

	token, err := f.signinToken(ctx,
		aws.ToString(creds.AccessKeyId),
		aws.ToString(creds.SecretAccessKey),
		aws.ToString(creds.SessionToken))
	if err != nil {
		return ConsoleSession{}, err
	}

	login := url.Values{}
	login.Set("Action", "login")
	login.Set("Issuer", f.issuer)
	login.Set("Destination", f.destination)
	login.Set("SigninToken", token)

	expires := time.Now().Add(temporarySessionDuration)
	if creds.Expiration != nil {
		expires = *creds.Expiration
	}
	return ConsoleSession{URL: f.endpoint + "?" + login.Encode(), ExpiresAt: expires}, nil
}

// signinToken trades the assumed-role credentials for a federation
// sign-in token.
func (f *AWSFederator) signinToken(ctx context.Context, keyID, secret, sessionToken string) (string, error) {
	session, err := json.Marshal(map[string]string{
		"sessionId":    keyID,
		"sessionKey":   secret,
		"sessionToken": sessionToken,
	})
	if err != nil {
		return "", apperr.Provider(0, "encode federation session", err)
	}

	q := url.Values{}
	q.Set("Action", "getSigninToken")
	q.Set("Session", string(session))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", apperr.Provider(0, "build federation request", err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return "", apperr.Provider(0, "fetch signin token", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", apperr.Provider(resp.StatusCode, "fetch signin token", fmt.Errorf("federation endpoint returned %d", resp.StatusCode))
	}

	var body struct {
		SigninToken string `json:"SigninToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", apperr.Provider(0, "decode signin token", err)
	}
	if body.SigninToken == "" {
		return "", apperr.Provider(0, "empty signin token", nil)
	}
	return body.SigninToken, nil
}

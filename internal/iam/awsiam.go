package iam

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsiam "github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/smithy-go"

	"credvault.org/internal/apperr"
)

const defaultCallTimeout = 15 * time.Second

// Provider error codes we translate into the service taxonomy.
const (
	codeNoSuchEntity        = "NoSuchEntity"
	codeEntityAlreadyExists = "EntityAlreadyExists"
)

// AWSClient implements Client against AWS IAM.
type AWSClient struct {
	api     *awsiam.Client
	timeout time.Duration
}

var _ Client = (*AWSClient)(nil)

// AWSOption configures AWSClient.
type AWSOption func(*AWSClient)

// WithCallTimeout bounds every provider call; calls fail, never hang.
func WithCallTimeout(d time.Duration) AWSOption {
	return func(c *AWSClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewAWSClient builds a client from a resolved AWS configuration.
func NewAWSClient(cfg aws.Config, opts ...AWSOption) *AWSClient {
	c := &AWSClient{
		api:     awsiam.NewFromConfig(cfg),
		timeout: defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *AWSClient) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func (c *AWSClient) CreateUser(ctx context.Context, username string) error {
	ctx, cancel := c.call(ctx)
	defer cancel()
	_, err := c.api.CreateUser(ctx, &awsiam.CreateUserInput{UserName: aws.String(username)})
	return wrapErr("create user", err)
}

func (c *AWSClient) DeleteUser(ctx context.Context, username string) error {
	ctx, cancel := c.call(ctx)
	defer cancel()
	_, err := c.api.DeleteUser(ctx, &awsiam.DeleteUserInput{UserName: aws.String(username)})
	return wrapErr("delete user", err)
}

func (c *AWSClient) RenameUser(ctx context.Context, username, newUsername string) error {
	ctx, cancel := c.call(ctx)
	defer cancel()
	_, err := c.api.UpdateUser(ctx, &awsiam.UpdateUserInput{
		UserName:    aws.String(username),
		NewUserName: aws.String(newUsername),
	})
	return wrapErr("rename user", err)
}

func (c *AWSClient) CreateLoginProfile(ctx context.Context, username, password string, resetRequired bool) error {
	ctx, cancel := c.call(ctx)
	defer cancel()
	_, err := c.api.CreateLoginProfile(ctx, &awsiam.CreateLoginProfileInput{
		UserName:              aws.String(username),
		Password:              aws.String(password),
		PasswordResetRequired: resetRequired,
	})
	return wrapErr("create login profile", err)
}

func (c *AWSClient) UpdateLoginProfile(ctx context.Context, username, password string) error {
	ctx, cancel := c.call(ctx)
	defer cancel()
	_, err := c.api.UpdateLoginProfile(ctx, &awsiam.UpdateLoginProfileInput{
		UserName: aws.String(username),
		Password: aws.String(password),
	})
	return wrapErr("update login profile", err)
}

func (c *AWSClient) DeleteLoginProfile(ctx context.Context, username string) error {
	ctx, cancel := c.call(ctx)
	defer cancel()
	_, err := c.api.DeleteLoginProfile(ctx, &awsiam.DeleteLoginProfileInput{UserName: aws.String(username)})
	return wrapErr("delete login profile", err)
}

func (c *AWSClient) LoginProfileExists(ctx context.Context, username string) (bool, error) {
	ctx, cancel := c.call(ctx)
	defer cancel()
	_, err := c.api.GetLoginProfile(ctx, &awsiam.GetLoginProfileInput{UserName: aws.String(username)})
	if err != nil {
		if apiErrorCode(err) == codeNoSuchEntity {
			return false, nil
		}
		return false, wrapErr("get login profile", err)
	}
	return true, nil
}

func (c *AWSClient) ListAccessKeys(ctx context.Context, username string) ([]AccessKey, error) {
	ctx, cancel := c.call(ctx)
	defer cancel()
	out, err := c.api.ListAccessKeys(ctx, &awsiam.ListAccessKeysInput{UserName: aws.String(username)})
	if err != nil {
		return nil, wrapErr("list access keys", err)
	}
	keys := make([]AccessKey, 0, len(out.AccessKeyMetadata))
	for _, md := range out.AccessKeyMetadata {
		keys = append(keys, AccessKey{
			ID:       aws.ToString(md.AccessKeyId),
			Username: aws.ToString(md.UserName),
			Status:   KeyStatus(md.Status),
		})
	}
	return keys, nil
}

func (c *AWSClient) CreateAccessKey(ctx context.Context, username string) (CreatedAccessKey, error) {
	ctx, cancel := c.call(ctx)
	defer cancel()
	out, err := c.api.CreateAccessKey(ctx, &awsiam.CreateAccessKeyInput{UserName: aws.String(username)})
	if err != nil {
		return CreatedAccessKey{}, wrapErr("create access key", err)
	}
	key := out.AccessKey
	return CreatedAccessKey{
		ID:       aws.ToString(key.AccessKeyId),
		Secret:   aws.ToString(key.SecretAccessKey),
		Username: aws.ToString(key.UserName),
		Status:   KeyStatus(key.Status),
	}, nil
}

func (c *AWSClient) UpdateAccessKeyStatus(ctx context.Context, username, keyID string, status KeyStatus) error {
	ctx, cancel := c.call(ctx)
	defer cancel()
	_, err := c.api.UpdateAccessKey(ctx, &awsiam.UpdateAccessKeyInput{
		AccessKeyId: aws.String(keyID),
		UserName:    aws.String(username),
		Status:      types.StatusType(status),
	})
	return wrapErr("update access key", err)
}

func (c *AWSClient) DeleteAccessKey(ctx context.Context, username, keyID string) error {
	ctx, cancel := c.call(ctx)
	defer cancel()
	_, err := c.api.DeleteAccessKey(ctx, &awsiam.DeleteAccessKeyInput{
		AccessKeyId: aws.String(keyID),
		UserName:    aws.String(username),
	})
	return wrapErr("delete access key", err)
}

func (c *AWSClient) ListAttachedPolicies(ctx context.Context, username string) ([]string, error) {
	ctx, cancel := c.call(ctx)
	defer cancel()
	out, err := c.api.ListAttachedUserPolicies(ctx, &awsiam.ListAttachedUserPoliciesInput{
		UserName: aws.String(username),
	})
	if err != nil {
		return nil, wrapErr("list attached policies", err)
	}
	arns := make([]string, 0, len(out.AttachedPolicies))
	for _, p := range out.AttachedPolicies {
		arns = append(arns, aws.ToString(p.PolicyArn))
	}
	return arns, nil
}

func (c *AWSClient) DetachPolicy(ctx context.Context, username, policyARN string) error {
	ctx, cancel := c.call(ctx)
	defer cancel()
	_, err := c.api.DetachUserPolicy(ctx, &awsiam.DetachUserPolicyInput{
		UserName:  aws.String(username),
		PolicyArn: aws.String(policyARN),
	})
	return wrapErr("detach policy", err)
}

func (c *AWSClient) ListInlinePolicies(ctx context.Context, username string) ([]string, error) {
	ctx, cancel := c.call(ctx)
	defer cancel()
	out, err := c.api.ListUserPolicies(ctx, &awsiam.ListUserPoliciesInput{UserName: aws.String(username)})
	if err != nil {
		return nil, wrapErr("list inline policies", err)
	}
	return out.PolicyNames, nil
}

func (c *AWSClient) DeleteInlinePolicy(ctx context.Context, username, policyName string) error {
	ctx, cancel := c.call(ctx)
	defer cancel()
	_, err := c.api.DeleteUserPolicy(ctx, &awsiam.DeleteUserPolicyInput{
		UserName:   aws.String(username),
		PolicyName: aws.String(policyName),
	})
	return wrapErr("delete inline policy", err)
}

func apiErrorCode(err error) string {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode()
	}
	return ""
}

// wrapErr translates a provider failure into the service taxonomy while
// keeping the native code and HTTP status.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return apperr.Provider(0, "", err)
	}
	switch ae.ErrorCode() {
	case codeNoSuchEntity:
		return &apperr.Error{Kind: apperr.KindNotFound, Message: op + ": " + ae.ErrorMessage(), Err: err}
	case codeEntityAlreadyExists:
		return &apperr.Error{Kind: apperr.KindConflict, Message: op + ": " + ae.ErrorMessage(), Err: err}
	}
	status := 0
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		status = re.HTTPStatusCode()
	}
	return apperr.Provider(status, ae.ErrorCode(), err)
}

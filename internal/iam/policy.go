package iam

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsiam "github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"

	"credvault.org/internal/apperr"
)

// Policy is a customer-managed policy known to the provider.
type Policy struct {
	ARN  string `json:"arn"`
	Name string `json:"name"`
}

// ProviderRole is a provider-side role, distinct from the service's own
// RBAC roles.
type ProviderRole struct {
	ARN  string `json:"arn"`
	Name string `json:"name"`
}

// PolicyAdmin is the provider administration surface: managed policies and
// provider roles, and their attachment to users and roles.
type PolicyAdmin interface {
	CreatePolicy(ctx context.Context, name, document string) (Policy, error)
	ListPolicies(ctx context.Context) ([]Policy, error)
	AttachUserPolicy(ctx context.Context, username, policyARN string) error
	AttachRolePolicy(ctx context.Context, roleName, policyARN string) error
	CreateRole(ctx context.Context, name, trustPolicy, description string) (ProviderRole, error)
	ListRoles(ctx context.Context) ([]ProviderRole, error)
}

var _ PolicyAdmin = (*AWSClient)(nil)

// PolicyStatement is one statement of a provider policy document.
type PolicyStatement struct {
	Effect    string   `json:"Effect"`
	Action    []string `json:"Action"`
	Resource  []string `json:"Resource"`
	Condition any      `json:"Condition,omitempty"`
}

// BuildPolicyDocument assembles a single-statement policy document.
func BuildPolicyDocument(effect string, actions, resources []string, condition any) (string, error) {
	if effect != "Allow" && effect != "Deny" {
		return "", apperr.Validation("effect", "effect must be Allow or Deny")
	}
	if len(actions) == 0 {
		return "", apperr.Validation("actions", "at least one action is required")
	}
	if len(resources) == 0 {
		return "", apperr.Validation("resources", "at least one resource is required")
	}
	doc := map[string]any{
		"Version": "2012-10-17",
		"Statement": []PolicyStatement{{
			Effect:    effect,
			Action:    actions,
			Resource:  resources,
			Condition: condition,
		}},
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (c *AWSClient) CreatePolicy(ctx context.Context, name, document string) (Policy, error) {
	ctx, cancel := c.call(ctx)
	defer cancel()
	out, err := c.api.CreatePolicy(ctx, &awsiam.CreatePolicyInput{
		PolicyName:     aws.String(name),
		PolicyDocument: aws.String(document),
	})
	if err != nil {
		return Policy{}, wrapErr("create policy", err)
	}
	return Policy{
		ARN:  aws.ToString(out.Policy.Arn),
		Name: aws.ToString(out.Policy.PolicyName),
	}, nil
}

func (c *AWSClient) ListPolicies(ctx context.Context) ([]Policy, error) {
	ctx, cancel := c.call(ctx)
	defer cancel()
	out, err := c.api.ListPolicies(ctx, &awsiam.ListPoliciesInput{
		Scope:    types.PolicyScopeTypeLocal,
		MaxItems: aws.Int32(1000),
	})
	if err != nil {
		return nil, wrapErr("list policies", err)
	}
	policies := make([]Policy, 0, len(out.Policies))
	for _, p := range out.Policies {
		policies = append(policies, Policy{
			ARN:  aws.ToString(p.Arn),
			Name: aws.ToString(p.PolicyName),
		})
	}
	return policies, nil
}

func (c *AWSClient) AttachUserPolicy(ctx context.Context, username, policyARN string) error {
	ctx, cancel := c.call(ctx)
	defer cancel()
	_, err := c.api.AttachUserPolicy(ctx, &awsiam.AttachUserPolicyInput{
		UserName:  aws.String(username),
		PolicyArn: aws.String(policyARN),
	})
	return wrapErr("attach user policy", err)
}

func (c *AWSClient) AttachRolePolicy(ctx context.Context, roleName, policyARN string) error {
	ctx, cancel := c.call(ctx)
	defer cancel()
	_, err := c.api.AttachRolePolicy(ctx, &awsiam.AttachRolePolicyInput{
		RoleName:  aws.String(roleName),
		PolicyArn: aws.String(policyARN),
	})
	return wrapErr("attach role policy", err)
}

func (c *AWSClient) CreateRole(ctx context.Context, name, trustPolicy, description string) (ProviderRole, error) {
	ctx, cancel := c.call(ctx)
	defer cancel()
	in := &awsiam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(trustPolicy),
	}
	if description != "" {
		in.Description = aws.String(description)
	}
	out, err := c.api.CreateRole(ctx, in)
	if err != nil {
		return ProviderRole{}, wrapErr("create role", err)
	}
	return ProviderRole{
		ARN:  aws.ToString(out.Role.Arn),
		Name: aws.ToString(out.Role.RoleName),
	}, nil
}

func (c *AWSClient) ListRoles(ctx context.Context) ([]ProviderRole, error) {
	ctx, cancel := c.call(ctx)
	defer cancel()
	out, err := c.api.ListRoles(ctx, &awsiam.ListRolesInput{})
	if err != nil {
		return nil, wrapErr("list roles", err)
	}
	roles := make([]ProviderRole, 0, len(out.Roles))
	for _, r := range out.Roles {
		roles = append(roles, ProviderRole{
			ARN:  aws.ToString(r.Arn),
			Name: aws.ToString(r.RoleName),
		})
	}
	return roles, nil
}

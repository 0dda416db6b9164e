package httpapi

import (
	"encoding/json"
	"net/http"

	"credvault.org/internal/apperr"
	"credvault.org/internal/iam"
)

type consoleSessionRequest struct {
	RoleARN     string `json:"role_arn"`
	SessionName string `json:"session_name"`
	ExternalID  string `json:"external_id"`
}

type createPolicyRequest struct {
	PolicyName     string          `json:"policy_name"`
	PolicyDocument json.RawMessage `json:"policy_document"`
}

type generatePolicyRequest struct {
	Effect     string   `json:"effect"`
	Actions    []string `json:"actions"`
	Resources  []string `json:"resources"`
	Conditions any      `json:"conditions"`
}

type attachUserPolicyRequest struct {
	Username  string `json:"username"`
	PolicyARN string `json:"policy_arn"`
}

type attachRolePolicyRequest struct {
	RoleName  string `json:"role_name"`
	PolicyARN string `json:"policy_arn"`
}

type createProviderRoleRequest struct {
	RoleName    string          `json:"role_name"`
	TrustPolicy json.RawMessage `json:"assume_role_policy_document"`
	Description string          `json:"description"`
}

func (a *API) handleConsoleSession(w http.ResponseWriter, r *http.Request) {
	if a.federation == nil {
		respondAppError(w, apperr.Configuration("temporary console access is not configured"))
		return
	}
	var req consoleSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, err)
		return
	}
	if req.RoleARN == "" {
		respondAppError(w, apperr.Validation("role_arn", "role_arn is required"))
		return
	}
	if req.SessionName == "" {
		respondAppError(w, apperr.Validation("session_name", "session_name is required"))
		return
	}
	sess, err := a.federation.ConsoleSession(r.Context(), req.RoleARN, req.SessionName, req.ExternalID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusCreated, "Temporary console access created", sess)
}

func (a *API) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	if a.iamAdmin == nil {
		respondAppError(w, apperr.Configuration("provider administration is not configured"))
		return
	}
	var req createPolicyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, err)
		return
	}
	if req.PolicyName == "" {
		respondAppError(w, apperr.Validation("policy_name", "policy_name is required"))
		return
	}
	if len(req.PolicyDocument) == 0 {
		respondAppError(w, apperr.Validation("policy_document", "policy_document is required"))
		return
	}
	policy, err := a.iamAdmin.CreatePolicy(r.Context(), req.PolicyName, string(req.PolicyDocument))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusCreated, "Policy created", policy)
}

func (a *API) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	if a.iamAdmin == nil {
		respondAppError(w, apperr.Configuration("provider administration is not configured"))
		return
	}
	policies, err := a.iamAdmin.ListPolicies(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusOK, "Policies fetched", policies)
}

func (a *API) handleGeneratePolicy(w http.ResponseWriter, r *http.Request) {
	var req generatePolicyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, err)
		return
	}
	doc, err := iam.BuildPolicyDocument(req.Effect, req.Actions, req.Resources, req.Conditions)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusOK, "Policy document generated", json.RawMessage(doc))
}

func (a *API) handleAttachUserPolicy(w http.ResponseWriter, r *http.Request) {
	if a.iamAdmin == nil {
		respondAppError(w, apperr.Configuration("provider administration is not configured"))
		return
	}
	var req attachUserPolicyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, err)
		return
	}
	if req.Username == "" {
		respondAppError(w, apperr.Validation("username", "username is required"))
		return
	}
	if req.PolicyARN == "" {
		respondAppError(w, apperr.Validation("policy_arn", "policy_arn is required"))
		return
	}
	if err := a.iamAdmin.AttachUserPolicy(r.Context(), req.Username, req.PolicyARN); err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusOK, "Policy attached to user", nil)
}

func (a *API) handleAttachRolePolicy(w http.ResponseWriter, r *http.Request) {
	if a.iamAdmin == nil {
		respondAppError(w, apperr.Configuration("provider administration is not configured"))
		return
	}
	var req attachRolePolicyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, err)
		return
	}
	if req.RoleName == "" {
		respondAppError(w, apperr.Validation("role_name", "role_name is required"))
		return
	}
	if req.PolicyARN == "" {
		respondAppError(w, apperr.Validation("policy_arn", "policy_arn is required"))
		return
	}
	if err := a.iamAdmin.AttachRolePolicy(r.Context(), req.RoleName, req.PolicyARN); err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusOK, "Policy attached to role", nil)
}

func (a *API) handleCreateProviderRole(w http.ResponseWriter, r *http.Request) {
	if a.iamAdmin == nil {
		respondAppError(w, apperr.Configuration("provider administration is not configured"))
		return
	}
	var req createProviderRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, err)
		return
	}
	if req.RoleName == "" {
		respondAppError(w, apperr.Validation("role_name", "role_name is required"))
		return
	}
	if len(req.TrustPolicy) == 0 {
		respondAppError(w, apperr.Validation("assume_role_policy_document", "assume_role_policy_document is required"))
		return
	}
	role, err := a.iamAdmin.CreateRole(r.Context(), req.RoleName, string(req.TrustPolicy), req.Description)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusCreated, "Provider role created", role)
}

func (a *API) handleListProviderRoles(w http.ResponseWriter, r *http.Request) {
	if a.iamAdmin == nil {
		respondAppError(w, apperr.Configuration("provider administration is not configured"))
		return
	}
	roles, err := a.iamAdmin.ListRoles(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusOK, "Provider roles fetched", roles)
}

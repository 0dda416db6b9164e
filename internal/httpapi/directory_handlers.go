package httpapi

import (
	"net/http"
	"strings"

	"credvault.org/internal/directory"
)

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	RoleID   string `json:"role_id"`
}

type updateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	RoleID   *string `json:"role_id"`
}

type addRoleRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, err)
		return
	}
	user, err := a.users.CreateUser(r.Context(), req.Username, req.Email, req.Password, req.RoleID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusCreated, "User created", user)
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.ListUsers(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusOK, "Users fetched", users)
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := resourceID(r.URL.Path, "/api/v1/users/")
	user, err := a.users.GetUser(r.Context(), id)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusOK, "User fetched", user)
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := resourceID(r.URL.Path, "/api/v1/users/")
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, err)
		return
	}
	user, err := a.users.UpdateUser(r.Context(), id, directory.UserUpdate{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		RoleID:   req.RoleID,
	})
	if err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusOK, "User updated", user)
}

func (a *API) handleAddRole(w http.ResponseWriter, r *http.Request) {
	var req addRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, err)
		return
	}
	role, err := a.users.AddRole(r.Context(), req.Name, req.Permissions)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusCreated, "Role saved", role)
}

func (a *API) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := a.users.ListRoles(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusOK, "Roles fetched", roles)
}

func (a *API) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := a.users.ListPermissions(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusOK, "Permissions fetched", perms)
}

func resourceID(path, prefix string) string {
	return strings.Trim(strings.TrimPrefix(path, prefix), "/")
}

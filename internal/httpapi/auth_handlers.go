package httpapi

import (
	"net/http"

	"credvault.org/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, err)
		return
	}
	user, err := a.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondAppError(w, err)
		return
	}
	roleName := ""
	if user.Role != nil {
		roleName = user.Role.Name
	}
	token, err := auth.GenerateToken(user.ID, roleName, a.tokenTTL)
	if err != nil {
		respondAppError(w, err)
		return
	}
	if info, ok := infoFrom(r.Context()); ok {
		info.userID = user.ID
	}
	respond(w, http.StatusOK, "Login successful", loginResponse{Token: token, User: user})
}

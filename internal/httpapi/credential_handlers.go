package httpapi

import (
	"net/http"
	"time"

	"credvault.org/internal/auth"
	"credvault.org/internal/credential"
	"credvault.org/internal/iam"
)

type createConsoleRequest struct {
	AwsUsername    string    `json:"aws_username"`
	AwsPassword    string    `json:"aws_password"`
	ExpirationTime time.Time `json:"expiration_time"`
}

type updateConsoleRequest struct {
	AwsNewUsername *string    `json:"aws_new_username"`
	AwsNewPassword *string    `json:"aws_new_password"`
	ExpirationTime *time.Time `json:"expiration_time"`
}

type createProgrammaticRequest struct {
	AwsUsername string `json:"aws_username"`
}

type updateProgrammaticRequest struct {
	Status string `json:"status"`
}

func actorID(r *http.Request) string {
	if p, ok := auth.PrincipalFrom(r.Context()); ok {
		return p.UserID
	}
	return ""
}

func (a *API) handleCreateConsole(w http.ResponseWriter, r *http.Request) {
	var req createConsoleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, err)
		return
	}
	cred, err := a.creds.CreateConsole(r.Context(), actorID(r), req.AwsUsername, req.AwsPassword, req.ExpirationTime)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusCreated, "Console credential created", cred)
}

func (a *API) handleListConsole(w http.ResponseWriter, r *http.Request) {
	creds, err := a.creds.ListConsole(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusOK, "Console credentials fetched", creds)
}

func (a *API) handleGetConsole(w http.ResponseWriter, r *http.Request) {
	id := resourceID(r.URL.Path, "/api/v1/credentials/console/")
	cred, err := a.creds.GetConsole(r.Context(), id)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusOK, "Console credential fetched", cred)
}

func (a *API) handleUpdateConsole(w http.ResponseWriter, r *http.Request) {
	id := resourceID(r.URL.Path, "/api/v1/credentials/console/")
	var req updateConsoleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, err)
		return
	}
	cred, err := a.creds.UpdateConsole(r.Context(), actorID(r), id, credential.ConsoleUpdate{
		NewUsername:   req.AwsNewUsername,
		NewPassword:   req.AwsNewPassword,
		NewExpiration: req.ExpirationTime,
	})
	if err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusOK, "Console credential updated", cred)
}

func (a *API) handleDeleteConsole(w http.ResponseWriter, r *http.Request) {
	id := resourceID(r.URL.Path, "/api/v1/credentials/console/")
	if err := a.creds.DeleteConsole(r.Context(), id); err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusOK, "Console credential deleted", nil)
}

func (a *API) handleCreateProgrammatic(w http.ResponseWriter, r *http.Request) {
	var req createProgrammaticRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, err)
		return
	}
	cred, err := a.creds.CreateProgrammatic(r.Context(), actorID(r), req.AwsUsername)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusCreated, "Programmatic credential created", cred)
}

func (a *API) handleListProgrammatic(w http.ResponseWriter, r *http.Request) {
	creds, err := a.creds.ListProgrammatic(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusOK, "Programmatic credentials fetched", creds)
}

func (a *API) handleUpdateProgrammatic(w http.ResponseWriter, r *http.Request) {
	id := resourceID(r.URL.Path, "/api/v1/credentials/programmatic/")
	var req updateProgrammaticRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, err)
		return
	}
	cred, err := a.creds.UpdateProgrammaticStatus(r.Context(), actorID(r), id, iam.KeyStatus(req.Status))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusOK, "Programmatic credential updated", cred)
}

func (a *API) handleDeleteProgrammatic(w http.ResponseWriter, r *http.Request) {
	id := resourceID(r.URL.Path, "/api/v1/credentials/programmatic/")
	if err := a.creds.DeleteProgrammatic(r.Context(), id); err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusOK, "Programmatic credential deleted", nil)
}

package credential

import (
	"context"
	"net/http"
	"strings"
	"time"

	"credvault.org/internal/apperr"
	"credvault.org/internal/auth"
	"credvault.org/internal/ids"
	"credvault.org/internal/iam"
	"credvault.org/internal/obs"
)

// Service sequences database writes and identity-provider calls for every
// credential operation. Provider calls are not covered by the database
// transaction; the ordering below is what keeps the two sides consistent.
type Service struct {
	store Store
	idp   iam.Client
	now   func() time.Time
}

// NewService wires a Service over the persistence store and provider client.
func NewService(store Store, idp iam.Client) *Service {
	return &Service{store: store, idp: idp, now: func() time.Time { return time.Now().UTC() }}
}

// CreateConsole provisions a console credential. The row is inserted inside
// a transaction first so username conflicts surface before any remote call;
// a remote failure rolls the insert back and, if the remote user was already
// created, removes it again so neither side keeps an orphan.
func (s *Service) CreateConsole(ctx context.Context, actorID, awsUsername, password string, expiration time.Time) (ConsoleCredential, error) {
	awsUsername = strings.TrimSpace(awsUsername)
	if awsUsername == "" {
		return ConsoleCredential{}, apperr.Validation("aws_username", "aws_username is required")
	}
	if err := auth.ValidatePasswordComplexity(password); err != nil {
		return ConsoleCredential{}, apperr.Validation("aws_password", err.Error())
	}
	if !expiration.After(s.now()) {
		return ConsoleCredential{}, apperr.Validation("expiration_time", "expiration_time must be in the future")
	}

	cred := ConsoleCredential{
		ID:             ids.New(),
		AwsUsername:    awsUsername,
		AwsPassword:    password,
		ExpirationTime: expiration.UTC(),
		CreatedBy:      actorID,
	}
	err := s.store.InTx(ctx, func(tx TxStore) error {
		if err := tx.InsertConsole(ctx, cred); err != nil {
			return err
		}
		if err := s.idp.CreateUser(ctx, awsUsername); err != nil {
			return err
		}
		if err := s.idp.CreateLoginProfile(ctx, awsUsername, password, false); err != nil {
			// The remote user exists but the insert is about to roll
			// back; remove the user again so a retry starts clean.
			if cleanupErr := s.idp.DeleteUser(ctx, awsUsername); cleanupErr != nil {
				obs.Log(map[string]any{
					"event":        "console_create_cleanup_failed",
					"aws_username": awsUsername,
					"error":        cleanupErr.Error(),
				})
			}
			return err
		}
		return nil
	})
	if err != nil {
		return ConsoleCredential{}, err
	}
	return s.store.GetConsole(ctx, cred.ID)
}

// UpdateConsole rotates a console credential. When both a new username and a
// new password are supplied, the remote rename happens first so the password
// update targets the renamed identity.
func (s *Service) UpdateConsole(ctx context.Context, actorID, id string, upd ConsoleUpdate) (ConsoleCredential, error) {
	if upd.NewUsername != nil {
		trimmed := strings.TrimSpace(*upd.NewUsername)
		if trimmed == "" {
			return ConsoleCredential{}, apperr.Validation("aws_new_username", "aws_new_username cannot be empty")
		}
		upd.NewUsername = &trimmed
	}
	if upd.NewPassword != nil {
		if err := auth.ValidatePasswordComplexity(*upd.NewPassword); err != nil {
			return ConsoleCredential{}, apperr.Validation("aws_new_password", err.Error())
		}
	}
	if upd.NewExpiration != nil && !upd.NewExpiration.After(s.now()) {
		return ConsoleCredential{}, apperr.Validation("expiration_time", "expiration_time must be in the future")
	}

	cred, err := s.store.GetConsole(ctx, id)
	if err != nil {
		return ConsoleCredential{}, err
	}
	oldUsername := cred.AwsUsername
	if upd.NewUsername != nil {
		cred.AwsUsername = *upd.NewUsername
	}
	if upd.NewPassword != nil {
		cred.AwsPassword = *upd.NewPassword
	}
	if upd.NewExpiration != nil {
		cred.ExpirationTime = upd.NewExpiration.UTC()
	}
	cred.UpdatedBy = &actorID

	err = s.store.InTx(ctx, func(tx TxStore) error {
		if err := tx.UpdateConsole(ctx, cred); err != nil {
			return err
		}
		if upd.NewUsername != nil && *upd.NewUsername != oldUsername {
			if err := s.idp.RenameUser(ctx, oldUsername, *upd.NewUsername); err != nil {
				return err
			}
		}
		if upd.NewPassword != nil {
			if err := s.idp.UpdateLoginProfile(ctx, cred.AwsUsername, *upd.NewPassword); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ConsoleCredential{}, err
	}
	return s.store.GetConsole(ctx, id)
}

// DeleteConsole tears down a console credential. Remote artifacts are
// removed first, in the order the provider requires, and the database row is
// removed last so a partial teardown stays visible and retryable. Deleting a
// credential that is already gone is a no-op.
func (s *Service) DeleteConsole(ctx context.Context, id string) error {
	cred, err := s.store.GetConsole(ctx, id)
	if err != nil {
		if apperr.StatusOf(err) == http.StatusNotFound {
			return nil
		}
		return err
	}
	if err := s.teardownRemoteUser(ctx, cred.AwsUsername); err != nil {
		return err
	}
	return s.store.DeleteConsole(ctx, id)
}

// teardownRemoteUser removes everything the provider refuses to delete a
// user with: access keys, the login profile, attached managed policies and
// inline policies, then the user itself. Each step tolerates "already gone"
// so a retried teardown converges.
func (s *Service) teardownRemoteUser(ctx context.Context, username string) error {
	keys, err := s.idp.ListAccessKeys(ctx, username)
	if err != nil {
		if apperr.StatusOf(err) == http.StatusNotFound {
			return nil
		}
		return err
	}
	for _, key := range keys {
		if err := s.idp.DeleteAccessKey(ctx, username, key.ID); err != nil && apperr.StatusOf(err) != http.StatusNotFound {
			return err
		}
	}

	exists, err := s.idp.LoginProfileExists(ctx, username)
	if err != nil {
		return err
	}
	if exists {
		if err := s.idp.DeleteLoginProfile(ctx, username); err != nil && apperr.StatusOf(err) != http.StatusNotFound {
			return err
		}
	}

	attached, err := s.idp.ListAttachedPolicies(ctx, username)
	if err != nil {
		return err
	}
	for _, arn := range attached {
		if err := s.idp.DetachPolicy(ctx, username, arn); err != nil && apperr.StatusOf(err) != http.StatusNotFound {
			return err
		}
	}

	inline, err := s.idp.ListInlinePolicies(ctx, username)
	if err != nil {
		return err
	}
	for _, name := range inline {
		if err := s.idp.DeleteInlinePolicy(ctx, username, name); err != nil && apperr.StatusOf(err) != http.StatusNotFound {
			return err
		}
	}

	if err := s.idp.DeleteUser(ctx, username); err != nil && apperr.StatusOf(err) != http.StatusNotFound {
		return err
	}
	return nil
}

// GetConsole fetches one console credential.
func (s *Service) GetConsole(ctx context.Context, id string) (ConsoleCredential, error) {
	return s.store.GetConsole(ctx, id)
}

// ListConsole returns all live console credentials.
func (s *Service) ListConsole(ctx context.Context) ([]ConsoleCredential, error) {
	return s.store.ListConsole(ctx)
}

// CreateProgrammatic issues a new access key for the username and persists
// the returned key material. The provider call happens first; there is no
// row to insert until the key exists.
func (s *Service) CreateProgrammatic(ctx context.Context, actorID, awsUsername string) (ProgrammaticCredential, error) {
	awsUsername = strings.TrimSpace(awsUsername)
	if awsUsername == "" {
		return ProgrammaticCredential{}, apperr.Validation("aws_username", "aws_username is required")
	}

	created, err := s.idp.CreateAccessKey(ctx, awsUsername)
	if err != nil {
		return ProgrammaticCredential{}, err
	}
	cred := ProgrammaticCredential{
		ID:           ids.New(),
		AwsUsername:  created.Username,
		AwsAccessKey: created.ID,
		AwsSecretKey: created.Secret,
		Status:       created.Status,
		CreatedBy:    actorID,
	}
	if err := s.store.InsertProgrammatic(ctx, cred); err != nil {
		return ProgrammaticCredential{}, err
	}
	return s.store.GetProgrammatic(ctx, cred.ID)
}

// UpdateProgrammaticStatus applies the requested status to every access key
// under the credential's username, then persists the new status.
func (s *Service) UpdateProgrammaticStatus(ctx context.Context, actorID, id string, status iam.KeyStatus) (ProgrammaticCredential, error) {
	if !status.Valid() {
		return ProgrammaticCredential{}, apperr.Validation("status", "status must be Active or Inactive")
	}
	cred, err := s.store.GetProgrammatic(ctx, id)
	if err != nil {
		return ProgrammaticCredential{}, err
	}
	keys, err := s.idp.ListAccessKeys(ctx, cred.AwsUsername)
	if err != nil {
		return ProgrammaticCredential{}, err
	}
	for _, key := range keys {
		if err := s.idp.UpdateAccessKeyStatus(ctx, cred.AwsUsername, key.ID, status); err != nil {
			return ProgrammaticCredential{}, err
		}
	}
	return s.store.SetProgrammaticStatus(ctx, id, status, actorID)
}

// DeleteProgrammatic revokes every access key under the credential's
// username, then removes the row. A second delete is a no-op.
func (s *Service) DeleteProgrammatic(ctx context.Context, id string) error {
	cred, err := s.store.GetProgrammatic(ctx, id)
	if err != nil {
		if apperr.StatusOf(err) == http.StatusNotFound {
			return nil
		}
		return err
	}
	keys, err := s.idp.ListAccessKeys(ctx, cred.AwsUsername)
	if err != nil && apperr.StatusOf(err) != http.StatusNotFound {
		return err
	}
	for _, key := range keys {
		if err := s.idp.DeleteAccessKey(ctx, cred.AwsUsername, key.ID); err != nil && apperr.StatusOf(err) != http.StatusNotFound {
			return err
		}
	}
	return s.store.DeleteProgrammatic(ctx, id)
}

// GetProgrammatic fetches one programmatic credential.
func (s *Service) GetProgrammatic(ctx context.Context, id string) (ProgrammaticCredential, error) {
	return s.store.GetProgrammatic(ctx, id)
}

// ListProgrammatic returns all live programmatic credentials.
func (s *Service) ListProgrammatic(ctx context.Context) ([]ProgrammaticCredential, error) {
	return s.store.ListProgrammatic(ctx)
}

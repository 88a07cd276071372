package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/services/accounts/passkey"
	"github.com/studycommons/studycommons/internal/services/accounts/storage"
	"github.com/studycommons/studycommons/internal/services/accounts/user"
)

type passkeyProvider interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginLogin(user webauthn.User, opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	BeginDiscoverableLogin(opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidatePasskeyLogin(handler webauthn.DiscoverableUserHandler, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (webauthn.User, *webauthn.Credential, error)
}

type passkeyParser interface {
	ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error)
	ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error)
}

type defaultPasskeyParser struct{}

func (defaultPasskeyParser) ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	return protocol.ParseCredentialCreationResponseBytes(data)
}

func (defaultPasskeyParser) ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	return protocol.ParseCredentialRequestResponseBytes(data)
}

// PasskeyCeremony is the first half of a WebAuthn ceremony: a stored session
// ID plus the JSON options the browser passes to the credentials API.
type PasskeyCeremony struct {
	SessionID   string
	OptionsJSON []byte
}

// PasskeyResult is the outcome of a finished WebAuthn ceremony.
type PasskeyResult struct {
	User         user.User
	CredentialID string
}

// BeginPasskeyRegistration starts a WebAuthn registration ceremony for a user.
func (s *Service) BeginPasskeyRegistration(ctx context.Context, userID string) (PasskeyCeremony, error) {
	if err := s.passkeyReady(); err != nil {
		return PasskeyCeremony{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return PasskeyCeremony{}, apperrors.New(apperrors.CodeUnauthenticated, "user id is required")
	}
	baseUser, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return PasskeyCeremony{}, mapStorageError(err)
	}

	passkeyUser, err := s.loadPasskeyUser(ctx, baseUser)
	if err != nil {
		return PasskeyCeremony{}, fmt.Errorf("load passkey user: %w", err)
	}

	options := []webauthn.RegistrationOption{
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
	}
	if len(passkeyUser.credentials) > 0 {
		options = append(options, webauthn.WithExclusions(webauthn.Credentials(passkeyUser.credentials).CredentialDescriptors()))
	}

	creation, session, err := s.passkeyWebAuthn.BeginRegistration(passkeyUser, options...)
	if err != nil {
		return PasskeyCeremony{}, fmt.Errorf("begin passkey registration: %w", err)
	}

	sessionID, err := s.idGenerator()
	if err != nil {
		return PasskeyCeremony{}, fmt.Errorf("create passkey session: %w", err)
	}
	if err := s.storePasskeySession(ctx, sessionID, passkey.SessionKindRegistration, baseUser.ID, session); err != nil {
		return PasskeyCeremony{}, fmt.Errorf("store passkey session: %w", err)
	}
	optionsJSON, err := json.Marshal(creation)
	if err != nil {
		return PasskeyCeremony{}, fmt.Errorf("encode registration options: %w", err)
	}
	return PasskeyCeremony{SessionID: sessionID, OptionsJSON: optionsJSON}, nil
}

// FinishPasskeyRegistration validates a browser response and stores the
// resulting credential.
func (s *Service) FinishPasskeyRegistration(ctx context.Context, sessionID string, responseJSON []byte) (PasskeyResult, error) {
	if err := s.passkeyReady(); err != nil {
		return PasskeyResult{}, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return PasskeyResult{}, apperrors.New(apperrors.CodeNotFound, "session id is required")
	}
	if len(responseJSON) == 0 {
		return PasskeyResult{}, apperrors.New(apperrors.CodeTokenInvalid, "credential response json is required")
	}

	session, err := s.loadPasskeySession(ctx, sessionID, passkey.SessionKindRegistration)
	if err != nil {
		return PasskeyResult{}, err
	}
	if session.UserID == "" {
		return PasskeyResult{}, fmt.Errorf("passkey session missing user id")
	}

	baseUser, err := s.store.GetUser(ctx, session.UserID)
	if err != nil {
		return PasskeyResult{}, mapStorageError(err)
	}
	passkeyUser, err := s.loadPasskeyUser(ctx, baseUser)
	if err != nil {
		return PasskeyResult{}, fmt.Errorf("load passkey user: %w", err)
	}

	parsed, err := s.passkeyParser.ParseCredentialCreationResponseBytes(responseJSON)
	if err != nil {
		return PasskeyResult{}, apperrors.Wrap(apperrors.CodeTokenInvalid, "parse credential response", err)
	}
	credential, err := s.passkeyWebAuthn.CreateCredential(passkeyUser, session.Data, parsed)
	if err != nil {
		return PasskeyResult{}, apperrors.Wrap(apperrors.CodeTokenInvalid, "validate credential response", err)
	}

	if err := s.storePasskeyCredential(ctx, baseUser.ID, *credential, false); err != nil {
		return PasskeyResult{}, fmt.Errorf("store passkey credential: %w", err)
	}
	_ = s.store.DeletePasskeySession(ctx, sessionID)

	return PasskeyResult{User: baseUser, CredentialID: encodeCredentialID(credential.ID)}, nil
}

// BeginPasskeyLogin starts a WebAuthn login ceremony. An empty user ID
// starts a discoverable login.
func (s *Service) BeginPasskeyLogin(ctx context.Context, userID string) (PasskeyCeremony, error) {
	if err := s.passkeyReady(); err != nil {
		return PasskeyCeremony{}, err
	}
	userID = strings.TrimSpace(userID)

	var (
		assertion *protocol.CredentialAssertion
		session   *webauthn.SessionData
		err       error
	)
	if userID == "" {
		assertion, session, err = s.passkeyWebAuthn.BeginDiscoverableLogin()
	} else {
		baseUser, getErr := s.store.GetUser(ctx, userID)
		if getErr != nil {
			return PasskeyCeremony{}, mapStorageError(getErr)
		}
		passkeyUser, loadErr := s.loadPasskeyUser(ctx, baseUser)
		if loadErr != nil {
			return PasskeyCeremony{}, fmt.Errorf("load passkey user: %w", loadErr)
		}
		assertion, session, err = s.passkeyWebAuthn.BeginLogin(passkeyUser)
	}
	if err != nil {
		return PasskeyCeremony{}, fmt.Errorf("begin passkey login: %w", err)
	}

	sessionID, err := s.idGenerator()
	if err != nil {
		return PasskeyCeremony{}, fmt.Errorf("create passkey session: %w", err)
	}
	if err := s.storePasskeySession(ctx, sessionID, passkey.SessionKindLogin, userID, session); err != nil {
		return PasskeyCeremony{}, fmt.Errorf("store passkey session: %w", err)
	}
	optionsJSON, err := json.Marshal(assertion)
	if err != nil {
		return PasskeyCeremony{}, fmt.Errorf("encode login options: %w", err)
	}
	return PasskeyCeremony{SessionID: sessionID, OptionsJSON: optionsJSON}, nil
}

// FinishPasskeyLogin validates a browser assertion and resolves the user.
func (s *Service) FinishPasskeyLogin(ctx context.Context, sessionID string, responseJSON []byte) (PasskeyResult, error) {
	if err := s.passkeyReady(); err != nil {
		return PasskeyResult{}, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return PasskeyResult{}, apperrors.New(apperrors.CodeNotFound, "session id is required")
	}
	if len(responseJSON) == 0 {
		return PasskeyResult{}, apperrors.New(apperrors.CodeTokenInvalid, "credential response json is required")
	}

	session, err := s.loadPasskeySession(ctx, sessionID, passkey.SessionKindLogin)
	if err != nil {
		return PasskeyResult{}, err
	}

	parsed, err := s.passkeyParser.ParseCredentialRequestResponseBytes(responseJSON)
	if err != nil {
		return PasskeyResult{}, apperrors.Wrap(apperrors.CodeTokenInvalid, "parse credential response", err)
	}

	validatedUser, validatedCredential, err := s.passkeyWebAuthn.ValidatePasskeyLogin(s.passkeyUserHandler(ctx), session.Data, parsed)
	if err != nil {
		return PasskeyResult{}, apperrors.Wrap(apperrors.CodeUnauthenticated, "validate passkey login", err)
	}

	userRecord, ok := validatedUser.(*passkeyUser)
	if !ok {
		return PasskeyResult{}, fmt.Errorf("passkey user type mismatch")
	}
	if userRecord.user.Suspended() {
		return PasskeyResult{}, apperrors.New(apperrors.CodeAccountSuspended, "account is suspended")
	}

	if err := s.storePasskeyCredential(ctx, userRecord.user.ID, *validatedCredential, true); err != nil {
		return PasskeyResult{}, fmt.Errorf("store passkey credential: %w", err)
	}
	_ = s.store.DeletePasskeySession(ctx, sessionID)

	return PasskeyResult{User: userRecord.user, CredentialID: encodeCredentialID(validatedCredential.ID)}, nil
}

func (s *Service) passkeyReady() error {
	if s.store == nil {
		return fmt.Errorf("user store is not configured")
	}
	if s.passkeyInitErr != nil || s.passkeyWebAuthn == nil {
		return fmt.Errorf("passkey configuration is not available")
	}
	if s.passkeyParser == nil {
		return fmt.Errorf("passkey parser is not configured")
	}
	return nil
}

type passkeyUser struct {
	user        user.User
	credentials []webauthn.Credential
}

func (u *passkeyUser) WebAuthnID() []byte {
	return []byte(u.user.ID)
}

func (u *passkeyUser) WebAuthnName() string {
	return u.user.ID
}

func (u *passkeyUser) WebAuthnDisplayName() string {
	return u.user.DisplayName
}

func (u *passkeyUser) WebAuthnIcon() string {
	return ""
}

func (u *passkeyUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}

func (s *Service) loadPasskeyUser(ctx context.Context, base user.User) (*passkeyUser, error) {
	credentials, err := s.store.ListPasskeyCredentials(ctx, base.ID)
	if err != nil {
		return nil, err
	}
	parsed, err := decodeStoredCredentials(credentials)
	if err != nil {
		return nil, err
	}
	return &passkeyUser{user: base, credentials: parsed}, nil
}

func decodeStoredCredentials(records []storage.PasskeyCredential) ([]webauthn.Credential, error) {
	if len(records) == 0 {
		return nil, nil
	}
	credentials := make([]webauthn.Credential, 0, len(records))
	for _, record := range records {
		var credential webauthn.Credential
		if err := json.Unmarshal([]byte(record.CredentialJSON), &credential); err != nil {
			return nil, fmt.Errorf("decode credential %s: %w", record.CredentialID, err)
		}
		credentials = append(credentials, credential)
	}
	return credentials, nil
}

func (s *Service) storePasskeyCredential(ctx context.Context, userID string, credential webauthn.Credential, used bool) error {
	credentialID := encodeCredentialID(credential.ID)
	now := s.clock().UTC()
	stored, err := s.store.GetPasskeyCredential(ctx, credentialID)
	if err != nil && err != storage.ErrNotFound {
		return err
	}
	if err == storage.ErrNotFound && used {
		return fmt.Errorf("passkey credential not found")
	}

	createdAt := now
	if err == nil {
		createdAt = stored.CreatedAt
	}
	credentialJSON, err := json.Marshal(credential)
	if err != nil {
		return err
	}
	var lastUsed *time.Time
	if used {
		value := now
		lastUsed = &value
	}
	return s.store.PutPasskeyCredential(ctx, storage.PasskeyCredential{
		CredentialID:   credentialID,
		UserID:         userID,
		CredentialJSON: string(credentialJSON),
		CreatedAt:      createdAt,
		UpdatedAt:      now,
		LastUsedAt:     lastUsed,
	})
}

func (s *Service) storePasskeySession(ctx context.Context, sessionID string, kind passkey.SessionKind, userID string, session *webauthn.SessionData) error {
	if session == nil {
		return fmt.Errorf("session data is required")
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.store.PutPasskeySession(ctx, storage.PasskeySession{
		ID:          sessionID,
		Kind:        string(kind),
		UserID:      userID,
		SessionJSON: string(payload),
		ExpiresAt:   s.clock().UTC().Add(s.passkeyConfig.SessionTTL),
	})
}

type loadedSession struct {
	Data   webauthn.SessionData
	Kind   passkey.SessionKind
	UserID string
}

func (s *Service) loadPasskeySession(ctx context.Context, sessionID string, expectedKind passkey.SessionKind) (loadedSession, error) {
	stored, err := s.store.GetPasskeySession(ctx, sessionID)
	if err != nil {
		if err == storage.ErrNotFound {
			return loadedSession{}, apperrors.New(apperrors.CodeNotFound, "passkey session not found")
		}
		return loadedSession{}, fmt.Errorf("load passkey session: %w", err)
	}
	if stored.Kind != string(expectedKind) {
		return loadedSession{}, apperrors.New(apperrors.CodeTokenInvalid, "passkey session kind mismatch")
	}
	if stored.ExpiresAt.Before(s.clock().UTC()) {
		_ = s.store.DeletePasskeySession(ctx, sessionID)
		return loadedSession{}, apperrors.New(apperrors.CodeSessionExpired, "passkey session expired")
	}

	var session webauthn.SessionData
	if err := json.Unmarshal([]byte(stored.SessionJSON), &session); err != nil {
		return loadedSession{}, fmt.Errorf("decode passkey session: %w", err)
	}
	return loadedSession{Data: session, Kind: expectedKind, UserID: stored.UserID}, nil
}

func (s *Service) passkeyUserHandler(ctx context.Context) webauthn.DiscoverableUserHandler {
	return func(_, userHandle []byte) (webauthn.User, error) {
		userID := string(userHandle)
		if strings.TrimSpace(userID) == "" {
			return nil, fmt.Errorf("user handle is required")
		}
		baseUser, err := s.store.GetUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		return s.loadPasskeyUser(ctx, baseUser)
	}
}

func encodeCredentialID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

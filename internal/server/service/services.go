package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/DidNoDB/didnodb/internal/server/models"
	"github.com/DidNoDB/didnodb/internal/server/passhash"
	"github.com/DidNoDB/didnodb/internal/server/token"
)

// Repository is the storage contract both backends implement.
type Repository interface {
	CreateUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, username string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CountUsers(ctx context.Context) (int64, error)

	EnsureNamespace(ctx context.Context, owner string) error
	SaveDocument(ctx context.Context, owner, id string, payload []byte) error
	GetDocument(ctx context.Context, owner, id string) ([]byte, error)
	ListDocuments(ctx context.Context, owner string) (map[string]json.RawMessage, error)
	DeleteDocument(ctx context.Context, owner, id string) error
	CountDocuments(ctx context.Context) (int64, error)
}

type Services struct {
	Auth      *AuthService
	Documents *DocumentService
	Metrics   *MetricsService
}

func NewServices(repo Repository, tokens *token.Manager) *Services {
	return &Services{
		Auth:      &AuthService{repo: repo, tokens: tokens},
		Documents: &DocumentService{repo: repo},
		Metrics:   &MetricsService{repo: repo},
	}
}

// AuthService implements registration, login and credential resolution.
type AuthService struct {
	repo   Repository
	tokens *token.Manager
}

// Usernames become storage keys (and directory names on the file backend).
var usernameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

func (a *AuthService) Register(ctx context.Context, username, password string) error {
	return a.register(ctx, username, password, models.RoleUser)
}

// EnsureAdmin provisions the configured admin account. Safe to call on every
// startup; an existing account is left untouched.
func (a *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	err := a.register(ctx, username, password, models.RoleAdmin)
	if errors.Is(err, models.ErrAlreadyExists) {
		return nil
	}
	return err
}

func (a *AuthService) register(ctx context.Context, username, password string, role models.Role) error {
	if !usernameRe.MatchString(username) {
		return fmt.Errorf("invalid username: %w", models.ErrInvalidInput)
	}
	if password == "" {
		return fmt.Errorf("password required: %w", models.ErrInvalidInput)
	}
	hash, err := passhash.Hash(password)
	if err != nil {
		return err
	}
	user := models.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.repo.CreateUser(ctx, user); err != nil {
		return err
	}
	// registration provisions the empty document namespace
	return a.repo.EnsureNamespace(ctx, username)
}

// Login verifies the password and issues a bearer credential. Unknown user
// and wrong password are indistinguishable to the caller.
func (a *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := a.repo.GetUser(ctx, username)
	if err != nil {
		return "", models.ErrInvalidCredentials
	}
	ok, err := passhash.Verify(user.PasswordHash, password)
	if err != nil || !ok {
		return "", models.ErrInvalidCredentials
	}
	return a.tokens.Issue(user.Username, user.Role)
}

// Authenticate resolves a bearer credential into an identity.
func (a *AuthService) Authenticate(_ context.Context, credential string) (models.Identity, error) {
	return a.tokens.Verify(credential)
}

func (a *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	return a.repo.ListUsers(ctx)
}

// DocumentService stores opaque JSON documents in per-owner namespaces under
// server-generated identifiers.
type DocumentService struct {
	repo Repository
}

// saveAttempts bounds retries after an id collision. With 128-bit random
// identifiers a single collision is already essentially impossible.
const saveAttempts = 3

func (s *DocumentService) Save(ctx context.Context, owner string, payload models.Payload) (string, error) {
	if len(payload) == 0 {
		return "", errors.New("empty payload")
	}
	for i := 0; i < saveAttempts; i++ {
		id := uuid.NewString()
		err := s.repo.SaveDocument(ctx, owner, id, payload)
		if errors.Is(err, models.ErrIDCollision) {
			continue
		}
		if err != nil {
			return "", err
		}
		return id, nil
	}
	return "", models.ErrIDCollision
}

func (s *DocumentService) Get(ctx context.Context, owner, id string) (models.Payload, error) {
	return s.repo.GetDocument(ctx, owner, id)
}

func (s *DocumentService) List(ctx context.Context, owner string) (map[string]json.RawMessage, error) {
	return s.repo.ListDocuments(ctx, owner)
}

func (s *DocumentService) Delete(ctx context.Context, owner, id string) error {
	return s.repo.DeleteDocument(ctx, owner, id)
}

// MetricsService aggregates usage counters across the whole store.
type MetricsService struct {
	repo Repository
}

func (m *MetricsService) Snapshot(ctx context.Context) (models.Metrics, error) {
	users, err := m.repo.CountUsers(ctx)
	if err != nil {
		return models.Metrics{}, err
	}
	docs, err := m.repo.CountDocuments(ctx)
	if err != nil {
		return models.Metrics{}, err
	}
	return models.Metrics{UserCount: users, DocumentCount: docs}, nil
}

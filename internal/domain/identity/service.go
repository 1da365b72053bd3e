package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
)

// ProfileCreator creates the role-specific profile row for a new user.
// Satisfied by the directory service; declared here so identity does not
// import it.
type ProfileCreator interface {
	CreateProfile(ctx context.Context, userID uuid.UUID, role, fullName string) error
}

type Service struct {
	repo     Repository
	profiles ProfileCreator
	runner   db.Runner
	jwt      auth.JWTConfig
}

func NewService(repo Repository, profiles ProfileCreator, runner db.Runner, jwt auth.JWTConfig) *Service {
	return &Service{repo: repo, profiles: profiles, runner: runner, jwt: jwt}
}

// Register creates a user account and its role profile in one
// transaction. A failure inserting the profile rolls the user back too.
func (s *Service) Register(ctx context.Context, reg *Registration) (*User, error) {
	reg.Username = strings.TrimSpace(strings.ToLower(reg.Username))
	reg.Email = strings.TrimSpace(strings.ToLower(reg.Email))
	reg.FullName = strings.TrimSpace(reg.FullName)

	if len(reg.Username) < 3 {
		return nil, apperr.New(apperr.Validation, "username must be at least 3 characters")
	}
	if reg.Email == "" || !strings.Contains(reg.Email, "@") {
		return nil, apperr.New(apperr.Validation, "a valid email is required")
	}
	if reg.FullName == "" {
		return nil, apperr.New(apperr.Validation, "full_name is required")
	}
	if len(reg.Password) < 8 {
		return nil, apperr.New(apperr.Validation, "password must be at least 8 characters")
	}
	if !auth.ValidRole(reg.Role) {
		return nil, apperr.Newf(apperr.Validation, "invalid role: %s", reg.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "hash password", err)
	}

	u := &User{
		Username:     reg.Username,
		Email:        reg.Email,
		FullName:     reg.FullName,
		PasswordHash: string(hash),
		Role:         reg.Role,
	}

	err = s.runner.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, u); err != nil {
			return err
		}
		return s.profiles.CreateProfile(ctx, u.ID, u.Role, u.FullName)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Login verifies the credentials and issues an access token.
func (s *Service) Login(ctx context.Context, creds *Credentials) (*Session, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, apperr.New(apperr.Validation, "username and password are required")
	}

	u, err := s.repo.GetByUsername(ctx, creds.Username)
	if err != nil {
		// Hide whether the account exists.
		if apperr.IsNotFound(err) {
			return nil, apperr.New(apperr.Forbidden, "invalid credentials")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(creds.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, apperr.New(apperr.Forbidden, "invalid credentials")
		}
		return nil, apperr.Wrap(apperr.Storage, "verify password", err)
	}

	token, err := auth.IssueToken(s.jwt, u.ID, u.Role)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "issue token", err)
	}

	return &Session{Token: token, User: u}, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	if role != "" && !auth.ValidRole(role) {
		return nil, 0, apperr.Newf(apperr.Validation, "invalid role: %s", role)
	}
	return s.repo.List(ctx, role, limit, offset)
}

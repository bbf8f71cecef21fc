package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/fjod/go_marketplace/internal/auth"
	"github.com/fjod/go_marketplace/internal/domain"
	mailer "github.com/fjod/go_marketplace/internal/mail"
	"github.com/fjod/go_marketplace/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const minPasswordLength = 8

type VerificationMailer interface {
	SendVerificationEmail(ctx context.Context, data mailer.VerificationData) error
}

type UserConfig struct {
	// PublicBaseURL prefixes verification links, e.g. https://shop.example.
	PublicBaseURL string
	TokenDuration time.Duration
}

type UserService struct {
	users  repository.UserRepository
	tokens auth.TokenMaker
	mailer VerificationMailer
	cfg    UserConfig
	log    zerolog.Logger
	now    func() time.Time
}

func NewUserService(users repository.UserRepository, tokens auth.TokenMaker, m VerificationMailer, cfg UserConfig, log zerolog.Logger) *UserService {
	return &UserService{
		users:  users,
		tokens: tokens,
		mailer: m,
		cfg:    cfg,
		log:    log.With().Str("component", "users").Logger(),
		now:    time.Now,
	}
}

type RegisterInput struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Address   string
	Role      string
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(in.Email))
	if err != nil {
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	roleName := in.Role
	if roleName == "" {
		roleName = domain.RoleNameCustomer
	}
	role, err := domain.ParseRole(roleName, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	switch role.(type) {
	case domain.Customer, domain.StoreOwner:
	case domain.Admin:
		return nil, fmt.Errorf("%w: admin accounts cannot self-register", ErrInvalidInput)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	token := uuid.New()
	now := s.now()
	u := &domain.User{
		Email:             addr.Address,
		Username:          username,
		PasswordHash:      hash,
		FirstName:         strings.TrimSpace(in.FirstName),
		LastName:          strings.TrimSpace(in.LastName),
		Phone:             strings.TrimSpace(in.Phone),
		Address:           strings.TrimSpace(in.Address),
		Role:              role,
		VerificationToken: &token,
		TokenCreatedAt:    &now,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	// the account exists either way; a failed send can be retried via resend-verification
	if err := s.sendVerification(ctx, u, token); err != nil {
		s.log.Error().Err(err).Int64("user_id", u.ID).Msg("verification email failed")
	}
	s.log.Info().Int64("user_id", u.ID).Str("role", role.Name()).Msg("user registered")
	return u, nil
}

func (s *UserService) sendVerification(ctx context.Context, u *domain.User, token uuid.UUID) error {
	return s.mailer.SendVerificationEmail(ctx, mailer.VerificationData{
		Username:        u.Username,
		Email:           u.Email,
		VerificationURL: fmt.Sprintf("%s/api/users/verify-email/%s/", strings.TrimRight(s.cfg.PublicBaseURL, "/"), token),
		ExpiryHours:     int(domain.VerificationTokenTTL / time.Hour),
	})
}

// Login returns a bearer token. Unknown users and wrong passwords are indistinguishable.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	u, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, repository.ErrUserNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}

	if err := auth.CheckPassword(password, u.PasswordHash); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !u.EmailVerified {
		return "", nil, ErrEmailNotVerified
	}

	token, _, err := s.tokens.CreateToken(u.ID, u.Role.Name(), s.cfg.TokenDuration)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *UserService) VerifyEmail(ctx context.Context, rawToken string) error {
	token, err := uuid.Parse(rawToken)
	if err != nil {
		return ErrInvalidVerificationToken
	}

	u, err := s.users.GetUserByVerificationToken(ctx, token)
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrInvalidVerificationToken
	}
	if err != nil {
		return err
	}
	if u.TokenExpired(s.now()) {
		return ErrVerificationTokenExpired
	}

	if err := s.users.MarkEmailVerified(ctx, u.ID); err != nil {
		return err
	}
	s.log.Info().Int64("user_id", u.ID).Msg("email verified")
	return nil
}

func (s *UserService) ResendVerification(ctx context.Context, email string) error {
	u, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return err
	}
	if u.EmailVerified {
		return ErrAlreadyVerified
	}

	token := uuid.New()
	if err := s.users.SetVerificationToken(ctx, u.ID, token, s.now()); err != nil {
		return err
	}
	return s.sendVerification(ctx, u, token)
}

func (s *UserService) Profile(ctx context.Context, p domain.Principal) (*domain.User, error) {
	return s.users.GetUserByID(ctx, p.UserID)
}

func (s *UserService) UpdateProfile(ctx context.Context, p domain.Principal, in domain.ProfileInput) (*domain.User, error) {
	u, err := s.users.GetUserByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&u.FirstName, in.FirstName)
	set(&u.LastName, in.LastName)
	set(&u.Phone, in.Phone)
	set(&u.Address, in.Address)

	if err := s.users.UpdateProfile(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ResolvePrincipal loads the current role of a token holder, so a store created
// after login is visible without a new token.
func (s *UserService) ResolvePrincipal(ctx context.Context, userID int64) (domain.Principal, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return domain.Principal{}, err
	}
	return domain.Principal{UserID: u.ID, Role: u.Role}, nil
}

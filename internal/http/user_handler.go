package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_marketplace/internal/domain"
	"github.com/fjod/go_marketplace/internal/service"
	"github.com/go-chi/chi/v5"
)

type UserService interface {
	Register(ctx context.Context, in service.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error
	Profile(ctx context.Context, p domain.Principal) (*domain.User, error)
	UpdateProfile(ctx context.Context, p domain.Principal, in domain.ProfileInput) (*domain.User, error)
}

type UserHandler struct {
	users   UserService
	timeout time.Duration
}

func NewUserHandler(users UserService, timeout time.Duration) *UserHandler {
	return &UserHandler{
		users:   users,
		timeout: timeout,
	}
}

type RegisterRequestDTO struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Role      string `json:"role"`
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ResendRequestDTO struct {
	Email string `json:"email"`
}

type ProfileRequestDTO struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
}

type UserDTO struct {
	ID            int64  `json:"id"`
	Email         string `json:"email"`
	Username      string `json:"username"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	Role          string `json:"role"`
	StoreID       *int64 `json:"store_id,omitempty"`
	EmailVerified bool   `json:"email_verified"`
}

type LoginResponseDTO struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

type MessageDTO struct {
	Message string `json:"message"`
}

func toUserDTO(u *domain.User) UserDTO {
	dto := UserDTO{
		ID:            u.ID,
		Email:         u.Email,
		Username:      u.Username,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Phone:         u.Phone,
		Address:       u.Address,
		EmailVerified: u.EmailVerified,
	}
	switch r := u.Role.(type) {
	case domain.StoreOwner:
		dto.Role = r.Name()
		if r.StoreID != 0 {
			id := r.StoreID
			dto.StoreID = &id
		}
	case domain.Customer, domain.Admin:
		dto.Role = r.Name()
	}
	return dto
}

// POST /api/users/register/
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req RegisterRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	u, err := h.users.Register(ctx, service.RegisterInput(req))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toUserDTO(u))
}

// POST /api/users/login/
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoginRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	token, u, err := h.users.Login(ctx, req.Email, req.Password)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, LoginResponseDTO{Token: token, User: toUserDTO(u)})
}

// GET /api/users/verify-email/{token}/
func (h *UserHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.users.VerifyEmail(ctx, chi.URLParam(r, "token")); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, MessageDTO{Message: "email verified"})
}

// POST /api/users/resend-verification/
func (h *UserHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ResendRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.users.ResendVerification(ctx, req.Email); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, MessageDTO{Message: "verification email sent"})
}

// GET /api/users/profile/
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, _ := principalFrom(r.Context())
	u, err := h.users.Profile(ctx, p)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserDTO(u))
}

// PUT /api/users/profile/
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, _ := principalFrom(r.Context())
	var req ProfileRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	u, err := h.users.UpdateProfile(ctx, p, domain.ProfileInput(req))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserDTO(u))
}

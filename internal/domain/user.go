package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	RoleNameCustomer   = "customer"
	RoleNameStoreOwner = "store_owner"
	RoleNameAdmin      = "admin"
)

var ErrUnknownRole = errors.New("unknown user role")

// Role is a closed set: Customer, StoreOwner and Admin are the only implementations.
// Callers branch on it with a type switch that lists every case.
type Role interface {
	Name() string
	role()
}

type Customer struct{}

// StoreOwner carries the id of the owned store, 0 until the store is created.
type StoreOwner struct {
	StoreID int64
}

type Admin struct{}

func (Customer) Name() string   { return RoleNameCustomer }
func (StoreOwner) Name() string { return RoleNameStoreOwner }
func (Admin) Name() string      { return RoleNameAdmin }

func (Customer) role()   {}
func (StoreOwner) role() {}
func (Admin) role()      {}

func ParseRole(name string, storeID int64) (Role, error) {
	switch name {
	case RoleNameCustomer:
		return Customer{}, nil
	case RoleNameStoreOwner:
		return StoreOwner{StoreID: storeID}, nil
	case RoleNameAdmin:
		return Admin{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, name)
	}
}

type User struct {
	ID                int64
	Email             string
	Username          string
	PasswordHash      string
	FirstName         string
	LastName          string
	Phone             string
	Address           string
	Role              Role
	EmailVerified     bool
	VerificationToken *uuid.UUID
	TokenCreatedAt    *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// VerificationTokenTTL is how long an emailed verification link stays valid.
const VerificationTokenTTL = 24 * time.Hour

func (u *User) TokenExpired(now time.Time) bool {
	if u.TokenCreatedAt == nil {
		return true
	}
	return now.Sub(*u.TokenCreatedAt) > VerificationTokenTTL
}

type ProfileInput struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Address   *string
}

// Principal is the authenticated caller of an operation.
type Principal struct {
	UserID int64
	Role   Role
}

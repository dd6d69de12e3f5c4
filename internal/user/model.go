package user

import (
	"time"

	"github.com/google/uuid"
)

// Account is how a user proves who they are: a local password, a
// federated identity, or both. The set of implementations is closed.
type Account interface {
	// PasswordHash returns the stored hash when the account can sign in
	// with a password.
	PasswordHash() (string, bool)
	// ExternalID returns the identity-provider subject when the account is
	// bound to one.
	ExternalID() (string, bool)
	account()
}

// LocalAccount signs in with email and password only.
type LocalAccount struct {
	Hash string
}

func (a LocalAccount) PasswordHash() (string, bool) { return a.Hash, true }
func (a LocalAccount) ExternalID() (string, bool)   { return "", false }
func (LocalAccount) account()                       {}

// FederatedAccount signs in through an external identity provider only.
type FederatedAccount struct {
	Subject string
}

func (a FederatedAccount) PasswordHash() (string, bool) { return "", false }
func (a FederatedAccount) ExternalID() (string, bool)   { return a.Subject, true }
func (FederatedAccount) account()                       {}

// HybridAccount can use either method.
type HybridAccount struct {
	Hash    string
	Subject string
}

func (a HybridAccount) PasswordHash() (string, bool) { return a.Hash, true }
func (a HybridAccount) ExternalID() (string, bool)   { return a.Subject, true }
func (HybridAccount) account()                       {}

// WithExternalID returns the account that results from binding an external
// identity.
func WithExternalID(a Account, subject string) Account {
	if hash, ok := a.PasswordHash(); ok {
		return HybridAccount{Hash: hash, Subject: subject}
	}
	return FederatedAccount{Subject: subject}
}

// LoginMethods lists the ways the account can sign in.
func LoginMethods(a Account) []string {
	var methods []string
	if _, ok := a.PasswordHash(); ok {
		methods = append(methods, "password")
	}
	if _, ok := a.ExternalID(); ok {
		methods = append(methods, "google")
	}
	return methods
}

type User struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	ProfilePic string    `json:"profile_pic"`
	Account    Account   `json:"-"` // Never expose credentials in JSON
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

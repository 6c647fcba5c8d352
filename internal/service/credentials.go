package service

import (
	"context"
	"strings"
	"unicode/utf8"

	pkgcrypto "github.com/and161185/hogar/internal/crypto"
	"github.com/and161185/hogar/internal/crypto/phonecrypto"
	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/model"
	"github.com/and161185/hogar/internal/repository"
)

// RegisterInput carries the fields needed to open an account.
type RegisterInput struct {
	Email       *string
	Phone       *string
	Password    string
	DisplayName string
}

// Credentials turns registration input into stored credentials.
type Credentials struct {
	Phone      *phonecrypto.Cipher // nil disables phone identifiers
	BcryptCost int
}

// newUser is a user prepared for insertion plus the identifiers used for lookups.
type newUser struct {
	user        *model.User
	email       string
	phoneLookup string
}

// prepare normalises identifiers and hashes the password.
func (c Credentials) prepare(in RegisterInput) (*newUser, error) {
	email := normalizeEmail(derefTrim(in.Email))
	phone := derefTrim(in.Phone)
	if email == "" && phone == "" {
		return nil, errs.ErrIdentifierRequired
	}
	if utf8.RuneCountInString(in.Password) < 6 {
		return nil, errs.New(errs.ErrBadRequest, "password must have at least 6 characters")
	}

	name, err := displayName(in.DisplayName)
	if err != nil {
		return nil, err
	}

	u := &model.User{ID: newID(), DisplayName: name}
	nu := &newUser{user: u, email: email}
	if email != "" {
		u.Email = &email
	}
	if phone != "" {
		_, enc, lookup, err := c.Phone.Protect(phone)
		if err != nil {
			return nil, err
		}
		u.PhoneEncrypted, u.PhoneLookupHash = &enc, &lookup
		nu.phoneLookup = lookup
	}
	hash, err := pkgcrypto.HashPassword(in.Password, c.BcryptCost)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash
	return nu, nil
}

// insert checks identifier availability and creates the user through r.
func (nu *newUser) insert(ctx context.Context, r repository.Repos) error {
	if nu.email != "" {
		taken, err := r.Users.EmailTaken(ctx, nu.email, nu.user.ID)
		if err != nil {
			return err
		}
		if taken {
			return errs.ErrEmailTaken
		}
	}
	if nu.phoneLookup != "" {
		taken, err := r.Users.PhoneTaken(ctx, nu.phoneLookup, nu.user.ID)
		if err != nil {
			return err
		}
		if taken {
			return errs.ErrPhoneTaken
		}
	}
	return r.Users.Create(ctx, nu.user)
}

// view projects a user for clients, decrypting the phone when possible.
func (c Credentials) view(u *model.User) model.UserView {
	v := model.UserView{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
	if u.PhoneEncrypted != nil && c.Phone.Enabled() {
		if p, err := c.Phone.Decrypt(*u.PhoneEncrypted); err == nil {
			v.Phone = &p
		}
	}
	return v
}

// displayName trims s and requires two characters of what is left.
func displayName(s string) (string, error) {
	name := strings.TrimSpace(s)
	if utf8.RuneCountInString(name) < 2 {
		return "", errs.New(errs.ErrBadRequest, "display name must have at least 2 characters")
	}
	return name, nil
}

package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/etudier/etudier/core"
)

// Roles
const (
	// RoleAdmin moderates the forum: duplicates, reported posts & answers.
	RoleAdmin = "admin"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Bio          string    `json:"bio"`
	IsActive     bool      `json:"is_active"`
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// Profile is the public view of a User, embedded in forum posts, answers and quizzes.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	Username        string `json:"username" validate:"required,min=8,max=32,alphanum_"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc *Service) error {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.Username, nu.Email)
}

// UpdateProfile defines what information may be provided to modify the current User's profile.
type UpdateProfile struct {
	Username string  `json:"username" validate:"omitempty,min=8,max=32,alphanum_"`
	Bio      *string `json:"bio" validate:"omitempty,max=1000"`
}

func (up *UpdateProfile) Validate(origUsr User, validate *validator.Validate, svc *Service) error {
	uname := core.CleanString(up.Username, true /* lower */)
	if uname != "" {
		up.Username = uname
	} else {
		up.Username = origUsr.Username
	}
	if up.Bio != nil {
		bio := core.CleanString(*up.Bio)
		up.Bio = &bio
	}

	if err := validate.Struct(up); err != nil {
		return err
	}
	return svc.CheckUniqueness(up.Username, origUsr.Email, origUsr)
}

// ChangePassword is used by a logged-in User to set a new password.
type ChangePassword struct {
	OldPassword     string `json:"old_password" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	// used by the password policy
	username, email string
}

func (cp *ChangePassword) Validate(usr User, validate *validator.Validate) error {
	cp.username = usr.Username
	cp.email = usr.Email
	return validate.Struct(cp)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

// GetFilter selects a single User; the first non-empty field wins.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail string
}

// Matches reports whether usr is selected by the filter; used by in-memory repositories.
func (f GetFilter) Matches(usr User) bool {
	switch {
	case f.ID != "":
		return usr.ID == f.ID
	case f.Username != "":
		return usr.Username == f.Username
	case f.Email != "":
		return usr.Email == f.Email
	case f.UsernameOrEmail != "":
		return usr.Username == f.UsernameOrEmail || strings.EqualFold(usr.Email, f.UsernameOrEmail)
	}
	return false
}

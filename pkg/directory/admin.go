package directory

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Admin is one row of the administrator roster. Rows are never removed;
// IsDeleted marks a deactivated administrator.
type Admin struct {
	ID        int64     `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	IsDeleted bool      `json:"is_deleted" db:"is_deleted"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Active reports whether the admin may sign in
func (a *Admin) Active() bool {
	return !a.IsDeleted
}

var (
	// ErrNotFound is returned when no admin matches the email or id
	ErrNotFound = errors.New("admin not found")
	// ErrInactive is returned by lookups that hit a deactivated admin
	ErrInactive = errors.New("admin not activated")
	// ErrInvalidEmail is returned for emails that are not local@domain.tld
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrEmptyEmail is returned when an update names no new email for an active admin
	ErrEmptyEmail = errors.New("email cannot be empty")
	// ErrEmailConflict is returned when another admin already holds the email
	ErrEmailConflict = errors.New("email already exists")
	// ErrPersistence wraps every storage failure
	ErrPersistence = errors.New("admin store failure")
)

// Result distinguishes the successful outcomes of a mutation
type Result int

const (
	Created Result = iota + 1
	Reactivated
	AlreadyActive
	Deactivated
	Updated
	ReactivatedAndUpdated
)

var resultNames = map[Result]string{
	Created:               "created",
	Reactivated:           "reactivated",
	AlreadyActive:         "already_active",
	Deactivated:           "deactivated",
	Updated:               "updated",
	ReactivatedAndUpdated: "reactivated_and_updated",
}

var resultMessages = map[Result]string{
	Created:               "Successfully added an admin",
	Reactivated:           "Successfully reactivated a deleted admin",
	AlreadyActive:         "admin already exists and is activated",
	Deactivated:           "Successfully deactivated an admin",
	Updated:               "Successfully updated an admin email",
	ReactivatedAndUpdated: "Successfully activated an admin and updated the email",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return "unknown"
}

// Message is the text shown to the operator for this outcome
func (r Result) Message() string {
	return resultMessages[r]
}

// emailPattern accepts a basic local@domain.tld shape
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// NormalizeEmail trims surrounding whitespace and lowercases email. All
// reads and writes go through it so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email, already passed through NormalizeEmail,
// has a usable shape
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

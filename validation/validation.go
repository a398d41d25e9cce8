// Package validation normalizes and rejects scalar inputs before any
// operation touches the store. Every function returns the normalized value
// or an apperrors.ErrInvalidArgument.
package validation

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"trello-project/microservices/taskgraph-service/apperrors"

	"github.com/google/uuid"
)

const (
	MaxNameLength        = 50
	MaxDescriptionLength = 500
	MaxUsernameLength    = 30
	MaxPersonNameLength  = 20
	MaxAuthIDLength      = 128
	MinPriority          = 0
	MaxPriority          = 5

	dateLayout = "2006-01-02"
)

var (
	alphaPattern  = regexp.MustCompile(`^[a-zA-Z ]+$`)
	authIDPattern = regexp.MustCompile(`^[a-zA-Z0-9|-]+$`)
)

// CheckString trims val and enforces rune-length bounds. maxChars <= 0 means
// unbounded.
func CheckString(val, varName string, minChars, maxChars int) (string, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return "", apperrors.InvalidArgument("%s cannot be empty", varName)
	}
	n := utf8.RuneCountInString(val)
	if n < minChars {
		return "", apperrors.InvalidArgument("%s must be at least %d characters long", varName, minChars)
	}
	if maxChars > 0 && n > maxChars {
		return "", apperrors.InvalidArgument("%s cannot be longer than %d characters", varName, maxChars)
	}
	return val, nil
}

// CheckUUID accepts only the canonical 36-character form and returns it
// lower-cased.
func CheckUUID(val, varName string) (string, error) {
	val, err := CheckString(val, varName, 1, 0)
	if err != nil {
		return "", err
	}
	if len(val) != 36 {
		return "", apperrors.InvalidArgument("%s must be a valid UUID", varName)
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return "", apperrors.InvalidArgument("%s must be a valid UUID", varName)
	}
	return id.String(), nil
}

func CheckInt(val int, varName string, minimum, maximum int) (int, error) {
	if val < minimum {
		return 0, apperrors.InvalidArgument("%s cannot be less than %d", varName, minimum)
	}
	if val > maximum {
		return 0, apperrors.InvalidArgument("%s cannot be greater than %d", varName, maximum)
	}
	return val, nil
}

// CheckDate accepts an ISO-8601 calendar date (2006-01-02) or an RFC 3339
// timestamp and rejects anything before now. Calendar dates are compared by
// day, so today is still a valid due date.
func CheckDate(val, varName string, now time.Time) (string, error) {
	val, err := CheckString(val, varName, 1, 0)
	if err != nil {
		return "", err
	}

	if d, err := time.Parse(dateLayout, val); err == nil {
		today, _ := time.Parse(dateLayout, now.UTC().Format(dateLayout))
		if d.Before(today) {
			return "", apperrors.InvalidArgument("%s cannot be in the past", varName)
		}
		return val, nil
	}

	ts, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return "", apperrors.InvalidArgument("%s must be a valid ISO-8601 date", varName)
	}
	if ts.Before(now) {
		return "", apperrors.InvalidArgument("%s cannot be in the past", varName)
	}
	return val, nil
}

func CheckAlpha(val, varName string) (string, error) {
	if !alphaPattern.MatchString(val) {
		return "", apperrors.InvalidArgument("%s must be alphabetic", varName)
	}
	return val, nil
}

func TaskName(name string) (string, error) {
	return CheckString(name, "name", 1, MaxNameLength)
}

func TaskDescription(description string) (string, error) {
	return CheckString(description, "description", 1, MaxDescriptionLength)
}

func TaskDueDate(dueDate string, now time.Time) (string, error) {
	return CheckDate(dueDate, "dueDate", now)
}

func TaskPriority(priority int) (int, error) {
	return CheckInt(priority, "priority", MinPriority, MaxPriority)
}

func TeamName(name string) (string, error) {
	return CheckString(name, "name", 1, MaxNameLength)
}

func TeamDescription(description string) (string, error) {
	return CheckString(description, "description", 1, MaxDescriptionLength)
}

// Username is case-folded so that uniqueness checks are case-insensitive.
func Username(username string) (string, error) {
	username, err := CheckString(username, "username", 1, MaxUsernameLength)
	if err != nil {
		return "", err
	}
	return strings.ToLower(username), nil
}

func PersonName(name, varName string) (string, error) {
	name, err := CheckString(name, varName, 1, MaxPersonNameLength)
	if err != nil {
		return "", err
	}
	return CheckAlpha(name, varName)
}

// AuthID accepts provider identifiers such as "auth0|64f1c2".
func AuthID(authID string) (string, error) {
	authID, err := CheckString(authID, "authID", 1, MaxAuthIDLength)
	if err != nil {
		return "", err
	}
	if !authIDPattern.MatchString(authID) {
		return "", apperrors.InvalidArgument("authID must be alphanumeric")
	}
	return authID, nil
}

// OptionalString validates *val with check when it is set.
func OptionalString(val *string, check func(string) (string, error)) (*string, error) {
	if val == nil {
		return nil, nil
	}
	out, err := check(*val)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

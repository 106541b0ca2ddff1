package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Comment length bounds
const (
	MinCommentLength = 5
	MaxCommentLength = 500
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	lowerPattern    = regexp.MustCompile(`[a-z]`)
	upperPattern    = regexp.MustCompile(`[A-Z]`)
	digitPattern    = regexp.MustCompile(`\d`)
	specialPattern  = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

// ValidateUsername checks the registration username rules
func ValidateUsername(username string) string {
	switch {
	case strings.TrimSpace(username) == "":
		return "Username is required"
	case len(username) < 3:
		return "Username must be at least 3 characters"
	case len(username) > 30:
		return "Username must be less than 30 characters"
	case !usernamePattern.MatchString(username):
		return "Username can only contain letters, numbers, and underscores"
	}
	return ""
}

// ValidateEmail checks basic email shape
func ValidateEmail(email string) string {
	switch {
	case strings.TrimSpace(email) == "":
		return "Email is required"
	case !emailPattern.MatchString(email):
		return "Please enter a valid email address"
	}
	return ""
}

// ValidatePassword requires 8+ characters with upper, lower and a digit
func ValidatePassword(password string) string {
	switch {
	case password == "":
		return "Password is required"
	case len(password) < 8:
		return "Password must be at least 8 characters"
	case !lowerPattern.MatchString(password) || !upperPattern.MatchString(password) || !digitPattern.MatchString(password):
		return "Password must contain at least one uppercase letter, one lowercase letter, and one number"
	}
	return ""
}

// ValidateRegistration checks every registration field
func ValidateRegistration(r Registration) FieldErrors {
	errs := FieldErrors{}
	if msg := ValidateUsername(r.Username); msg != "" {
		errs["username"] = msg
	}
	if msg := ValidateEmail(r.Email); msg != "" {
		errs["email"] = msg
	}
	if msg := ValidatePassword(r.Password); msg != "" {
		errs["password"] = msg
	}
	switch {
	case r.ConfirmPassword == "":
		errs["confirm_password"] = "Please confirm your password"
	case r.ConfirmPassword != r.Password:
		errs["confirm_password"] = "Passwords do not match"
	}
	return errs
}

// ValidateLogin rejects empty credentials before any request is made
func ValidateLogin(username, password string) error {
	errs := FieldErrors{}
	if strings.TrimSpace(username) == "" {
		errs["username"] = "Username is required"
	}
	if password == "" {
		errs["password"] = "Password is required"
	}
	return errs.OrNil()
}

// ValidateComment checks comment content length
func ValidateComment(content string) error {
	n := utf8.RuneCountInString(content)
	switch {
	case strings.TrimSpace(content) == "":
		return &ValidationError{Field: "content", Message: "Comment cannot be empty."}
	case n < MinCommentLength:
		return &ValidationError{Field: "content", Message: "Comment must be at least 5 characters long."}
	case n > MaxCommentLength:
		return &ValidationError{Field: "content", Message: "Comment cannot exceed 500 characters."}
	}
	return nil
}

// ValidatePostDraft requires a title and content
func ValidatePostDraft(d PostDraft) error {
	if strings.TrimSpace(d.Title) == "" || strings.TrimSpace(d.Content) == "" {
		return &ValidationError{Field: "title", Message: "Title and content are required."}
	}
	return nil
}

// PasswordStrength grades a password for display on the registration form
type PasswordStrength int

const (
	StrengthNone PasswordStrength = iota
	StrengthWeak
	StrengthFair
	StrengthGood
	StrengthStrong
)

func (s PasswordStrength) String() string {
	switch s {
	case StrengthWeak:
		return "Weak"
	case StrengthFair:
		return "Fair"
	case StrengthGood:
		return "Good"
	case StrengthStrong:
		return "Strong"
	}
	return ""
}

// GradePassword scores length and character classes
func GradePassword(password string) PasswordStrength {
	if password == "" {
		return StrengthNone
	}
	score := 0
	for _, ok := range []bool{
		len(password) >= 8,
		lowerPattern.MatchString(password),
		upperPattern.MatchString(password),
		digitPattern.MatchString(password),
		specialPattern.MatchString(password),
	} {
		if ok {
			score++
		}
	}
	switch {
	case score < 2:
		return StrengthWeak
	case score < 4:
		return StrengthFair
	case score < 5:
		return StrengthGood
	}
	return StrengthStrong
}

// Package validation holds the field rules shared by request binding and the
// services: usernames, community slugs, reaction emoji and content bodies.
// The rules are registered with gin's validator engine as struct tags so
// handlers can reject malformed input before any service call.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MaxEmojiLength    = 32
	MaxBodyLength     = 10000
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	// A slug is a single DNS label so that <slug>.<base domain> resolves
	slugPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)
)

// NormalizeUsername lowercases and trims a username
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateUsername checks length and character set
func ValidateUsername(s string) error {
	n := utf8.RuneCountInString(s)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return fmt.Errorf("username must be %d-%d characters", MinUsernameLength, MaxUsernameLength)
	}
	if !usernamePattern.MatchString(s) {
		return fmt.Errorf("username may only contain letters, digits and underscores")
	}
	return nil
}

// ValidateSlug checks that s can be used as a subdomain label
func ValidateSlug(s string) error {
	if !slugPattern.MatchString(s) {
		return fmt.Errorf("slug must be a lowercase DNS label")
	}
	return nil
}

// ValidateEmoji bounds a reaction's length
func ValidateEmoji(s string) error {
	if s == "" || utf8.RuneCountInString(s) > MaxEmojiLength {
		return fmt.Errorf("emoji must be 1-%d characters", MaxEmojiLength)
	}
	return nil
}

func fieldRule(check func(string) error) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return check(fl.Field().String()) == nil
	}
}

// Register adds the username, slug and emoji tags to v
func Register(v *validator.Validate) error {
	rules := map[string]func(string) error{
		"username": ValidateUsername,
		"slug":     ValidateSlug,
		"emoji":    ValidateEmoji,
	}
	for tag, check := range rules {
		if err := v.RegisterValidation(tag, fieldRule(check)); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

// RegisterWithGin installs the custom tags on gin's default validator
func RegisterWithGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected gin validator engine %T", binding.Validator.Engine())
	}
	return Register(v)
}

var fqdn = validator.New()

// ValidateDomain reports whether s is a fully qualified domain name
func ValidateDomain(s string) error {
	if err := fqdn.Var(s, "required,fqdn"); err != nil {
		return fmt.Errorf("invalid domain %q", s)
	}
	return nil
}

package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxMessageLength = 4000
	MaxSettingKeyLen = 100
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

var settingKeyRegex = regexp.MustCompile(`^[a-z0-9_]+(\.[a-z0-9_]+)*$`)

func ValidateMessage(content string) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(content) == "" {
		errs.Add("content", "Message content is required")
	} else if utf8.RuneCountInString(content) > MaxMessageLength {
		errs.Add("content", fmt.Sprintf("Message is too long (max %d characters)", MaxMessageLength))
	}

	return errs
}

func ValidateSetting(key, scopeType string) ValidationErrors {
	errs := make(ValidationErrors)

	key = strings.TrimSpace(key)
	if key == "" {
		errs.Add("key", "Setting key is required")
	} else if len(key) > MaxSettingKeyLen {
		errs.Add("key", "Setting key is too long")
	} else if !settingKeyRegex.MatchString(key) {
		errs.Add("key", "Setting key can only contain lowercase letters, numbers, _ and dot separators")
	}

	switch scopeType {
	case "", "global", "organization", "user":
	default:
		errs.Add("scope_type", "Scope type must be global, organization, or user")
	}

	return errs
}

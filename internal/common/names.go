package common

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	repositoryNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

	// Tags never contain '_' so an alias splits back into (name, tag) at its last underscore.
	tagPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.-]{0,31}$`)

	emailPattern = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
)

// ValidateRepositoryName checks name against the allow-list used for
// directory and object names.
func ValidateRepositoryName(name string) error {
	if !repositoryNamePattern.MatchString(name) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: repository name %q", ErrInvalidArgument, name)
	}
	return nil
}

// ValidateTag checks an alias tag against the allow-list.
func ValidateTag(tag string) error {
	if !tagPattern.MatchString(tag) || strings.Contains(tag, "..") {
		return fmt.Errorf("%w: tag %q", ErrInvalidArgument, tag)
	}
	return nil
}

// NormalizeEmail returns the stored form of an email address: trimmed and
// lower-cased. Every lookup by email goes through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the (lower-case) email format.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: email %q", ErrInvalidArgument, email)
	}
	return nil
}

// MakeAlias returns the escrow alias "{repositoryName}_{tag}".
func MakeAlias(repositoryName, tag string) string {
	return repositoryName + "_" + tag
}

package api

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
)

// SanitizeString sanitizes a string input
func SanitizeString(s string) string {
	// Trim whitespace
	s = strings.TrimSpace(s)

	// Unescape HTML entities (in case of double encoding)
	s = html.UnescapeString(s)

	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	return s
}

// SanitizeURL sanitizes and validates a URL
func SanitizeURL(u string) (string, error) {
	u = strings.TrimSpace(u)

	// Parse URL to validate
	parsed, err := url.Parse(u)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	// Only allow http and https schemes
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("only http and https schemes are allowed")
	}

	return parsed.String(), nil
}

// SanitizeGitBranch sanitizes a git branch name
func SanitizeGitBranch(branch string) string {
	branch = strings.TrimSpace(branch)

	// Remove dangerous characters
	re := regexp.MustCompile(`[^a-zA-Z0-9/._-]`)
	branch = re.ReplaceAllString(branch, "")

	// Remove leading/trailing dots and slashes
	branch = strings.Trim(branch, "./")

	return branch
}

// SanitizeCommitSHA sanitizes a git commit SHA
func SanitizeCommitSHA(sha string) string {
	sha = strings.TrimSpace(sha)
	sha = strings.ToLower(sha)

	// Only allow hexadecimal characters
	re := regexp.MustCompile(`[^a-f0-9]`)
	sha = re.ReplaceAllString(sha, "")

	// Limit length (SHA-1 is 40 chars, SHA-256 is 64 chars)
	if len(sha) > 64 {
		sha = sha[:64]
	}

	return sha
}

// Note: ValidationError is defined in validation.go


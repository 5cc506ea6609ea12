package membership

import (
	"net/url"
	"strings"
)

// Links builds the absolute URLs embedded in notifications.
type Links struct {
	BaseURL           string
	SetPasswordPath   string
	ResetPasswordPath string
}

// DefaultLinks points at a local development server
func DefaultLinks() Links {
	return Links{
		BaseURL:           "http://localhost:8572",
		SetPasswordPath:   "/set-password",
		ResetPasswordPath: "/reset-password",
	}
}

// SetPassword returns the link a new member follows to pick a password
func (l Links) SetPassword(token string) string {
	return l.build(l.SetPasswordPath, "/set-password", token)
}

// ResetPassword returns the password reset link
func (l Links) ResetPassword(token string) string {
	return l.build(l.ResetPasswordPath, "/reset-password", token)
}

func (l Links) build(path, def, token string) string {
	if path == "" {
		path = def
	}
	base := strings.TrimRight(l.BaseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	q := url.Values{}
	q.Set("token", token)
	return base + path + "?" + q.Encode()
}

// Package mailer delivers membership notifications by email.
package mailer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/flosch/pongo2/v6"
	membership "github.com/goliatone/go-membership"
)

// Template is the subject and body pair rendered for one notification kind
type Template struct {
	Subject *pongo2.Template
	Body    *pongo2.Template
}

// Templates renders notifications by kind
type Templates struct {
	byKind map[membership.NotificationKind]Template
	global pongo2.Context
}

var defaultTemplates = map[membership.NotificationKind][2]string{
	membership.NotificationWelcome: {
		"Welcome {{ full_name }}, set your password",
		`Hello {{ full_name }},

Your membership application has been approved. Your username is {{ username }}.

Set your password here:
{{ link }}

This link expires at {{ expires_at|date:"2006-01-02 15:04 MST" }}.
`,
	},
	membership.NotificationPasswordReset: {
		"Reset your password",
		`Hello {{ full_name|default:username }},

We received a request to reset your password. Use the link below to choose a new one:
{{ link }}

This link expires at {{ expires_at|date:"2006-01-02 15:04 MST" }}. If you did not ask for a reset you can ignore this email.
`,
	},
	membership.NotificationContact: {
		"[Contact] {{ subject }}",
		`New contact form message

From: {{ name }} <{{ email }}>
{% if phone %}Phone: {{ phone }}
{% endif %}Subject: {{ subject }}

{{ message }}
`,
	},
}

// DefaultTemplates returns the built in templates.
func DefaultTemplates() (*Templates, error) {
	t := &Templates{byKind: map[membership.NotificationKind]Template{}, global: pongo2.Context{}}
	for kind, src := range defaultTemplates {
		subject, err := pongo2.FromString(plain(src[0]))
		if err != nil {
			return nil, fmt.Errorf("mailer: parse %s subject: %w", kind, err)
		}
		body, err := pongo2.FromString(plain(src[1]))
		if err != nil {
			return nil, fmt.Errorf("mailer: parse %s body: %w", kind, err)
		}
		t.byKind[kind] = Template{Subject: subject, Body: body}
	}
	return t, nil
}

// LoadTemplates reads <kind>.subject.txt and <kind>.body.txt from dir,
// falling back to the built in template for missing kinds.
func LoadTemplates(dir string) (*Templates, error) {
	t, err := DefaultTemplates()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dir) == "" {
		return t, nil
	}

	loader, err := pongo2.NewLocalFileSystemLoader(dir)
	if err != nil {
		return nil, fmt.Errorf("mailer: template dir: %w", err)
	}
	set := pongo2.NewSet("mailer", loader)

	for kind := range defaultTemplates {
		subject, serr := set.FromFile(filepath.Join(dir, string(kind)+".subject.txt"))
		body, berr := set.FromFile(filepath.Join(dir, string(kind)+".body.txt"))
		if serr != nil || berr != nil {
			continue
		}
		t.byKind[kind] = Template{Subject: subject, Body: body}
	}
	return t, nil
}

// WithGlobal adds values available to every template, such as site_name.
func (t *Templates) WithGlobal(key string, value any) *Templates {
	t.global[key] = value
	return t
}

// Render returns the subject and body for n.
func (t *Templates) Render(n membership.Notification) (string, string, error) {
	tpl, ok := t.byKind[n.Kind]
	if !ok {
		return "", "", fmt.Errorf("mailer: no template for %q", n.Kind)
	}

	data := pongo2.Context{}
	for k, v := range t.global {
		data[k] = v
	}
	for k, v := range n.Data {
		data[k] = v
	}
	// subject is echoed inside the contact body too, keep it on one line there
	if subject, ok := data["subject"].(string); ok {
		data["subject"] = sanitizeHeader(subject)
	}

	subject, err := tpl.Subject.Execute(data)
	if err != nil {
		return "", "", fmt.Errorf("mailer: render %s subject: %w", n.Kind, err)
	}
	body, err := tpl.Body.Execute(data)
	if err != nil {
		return "", "", fmt.Errorf("mailer: render %s body: %w", n.Kind, err)
	}
	return sanitizeHeader(subject), body, nil
}

// plain disables HTML escaping, the mails are text/plain.
func plain(src string) string {
	return "{% autoescape off %}" + src + "{% endautoescape %}"
}

func sanitizeHeader(v string) string {
	v = strings.ReplaceAll(v, "\r", " ")
	v = strings.ReplaceAll(v, "\n", " ")
	return strings.TrimSpace(v)
}

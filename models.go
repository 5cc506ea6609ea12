package membership

import (
	"sort"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// MembershipType is the kind of membership applied for
type MembershipType string

const (
	MembershipTypeGeneral MembershipType = "general"
	MembershipTypeActive  MembershipType = "active"
)

// IsValid reports whether t is a known membership type
func (t MembershipType) IsValid() bool {
	return t == MembershipTypeGeneral || t == MembershipTypeActive
}

// MembershipStatus gates account provisioning
type MembershipStatus string

const (
	StatusPending  MembershipStatus = "pending"
	StatusApproved MembershipStatus = "approved"
	StatusBlocked  MembershipStatus = "blocked"
)

// MembershipStatuses lists every status that may be persisted.
var MembershipStatuses = []MembershipStatus{StatusPending, StatusApproved, StatusBlocked}

// IsValid reports whether s is one of pending, approved or blocked
func (s MembershipStatus) IsValid() bool {
	for _, v := range MembershipStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Role is the account role
type Role = string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Application is a membership application submitted from the public site.
type Application struct {
	bun.BaseModel `bun:"table:membership_applications,alias:ma" bson:"-" json:"-"`

	ID                       string           `bun:"id,pk" bson:"_id" json:"id"`
	FullName                 string           `bun:"full_name,notnull" bson:"full_name" json:"full_name"`
	Email                    string           `bun:"email,notnull" bson:"email" json:"email"`
	Phone                    string           `bun:"phone" bson:"phone,omitempty" json:"phone,omitempty"`
	Address                  string           `bun:"address" bson:"address,omitempty" json:"address,omitempty"`
	City                     string           `bun:"city" bson:"city,omitempty" json:"city,omitempty"`
	State                    string           `bun:"state" bson:"state,omitempty" json:"state,omitempty"`
	PostalCode               string           `bun:"postal_code" bson:"postal_code,omitempty" json:"postal_code,omitempty"`
	Country                  string           `bun:"country" bson:"country,omitempty" json:"country,omitempty"`
	DateOfBirth              string           `bun:"date_of_birth" bson:"date_of_birth,omitempty" json:"date_of_birth,omitempty"`
	Gender                   string           `bun:"gender" bson:"gender,omitempty" json:"gender,omitempty"`
	Profession               string           `bun:"profession" bson:"profession,omitempty" json:"profession,omitempty"`
	Skills                   string           `bun:"skills" bson:"skills,omitempty" json:"skills,omitempty"`
	VolunteerInterests       []string         `bun:"volunteer_interests" bson:"volunteer_interests,omitempty" json:"volunteer_interests,omitempty"`
	NationalMembershipNumber string           `bun:"national_membership_number" bson:"national_membership_number,omitempty" json:"national_membership_number,omitempty"`
	MembershipType           MembershipType   `bun:"membership_type,notnull" bson:"membership_type" json:"membership_type"`
	MembershipStatus         MembershipStatus `bun:"membership_status,notnull" bson:"membership_status" json:"membership_status"`
	ProfilePhoto             string           `bun:"profile_photo" bson:"profile_photo,omitempty" json:"profile_photo,omitempty"`
	CreatedAt                time.Time        `bun:"created_at,nullzero,notnull,default:current_timestamp" bson:"created_at" json:"created_at"`
	UpdatedAt                time.Time        `bun:"updated_at,nullzero,notnull,default:current_timestamp" bson:"updated_at" json:"updated_at"`
}

// ApplicationPatch holds the fields an administrator may change. Nil
// fields are left untouched.
type ApplicationPatch struct {
	FullName                 *string
	Email                    *string
	Phone                    *string
	Address                  *string
	City                     *string
	State                    *string
	PostalCode               *string
	Country                  *string
	DateOfBirth              *string
	Gender                   *string
	Profession               *string
	Skills                   *string
	VolunteerInterests       []string
	NationalMembershipNumber *string
	MembershipType           *MembershipType
	ProfilePhoto             *string
}

// IsZero reports whether the patch changes nothing
func (p ApplicationPatch) IsZero() bool {
	return p.FullName == nil && p.Email == nil && p.Phone == nil &&
		p.Address == nil && p.City == nil && p.State == nil &&
		p.PostalCode == nil && p.Country == nil && p.DateOfBirth == nil &&
		p.Gender == nil && p.Profession == nil && p.Skills == nil &&
		p.VolunteerInterests == nil && p.NationalMembershipNumber == nil &&
		p.MembershipType == nil && p.ProfilePhoto == nil
}

// Apply copies the set fields onto app
func (p ApplicationPatch) Apply(app *Application) {
	if app == nil {
		return
	}
	setString(&app.FullName, p.FullName)
	if p.Email != nil {
		app.Email = NormalizeEmail(*p.Email)
	}
	setString(&app.Phone, p.Phone)
	setString(&app.Address, p.Address)
	setString(&app.City, p.City)
	setString(&app.State, p.State)
	setString(&app.PostalCode, p.PostalCode)
	setString(&app.Country, p.Country)
	setString(&app.DateOfBirth, p.DateOfBirth)
	setString(&app.Gender, p.Gender)
	setString(&app.Profession, p.Profession)
	setString(&app.Skills, p.Skills)
	if p.VolunteerInterests != nil {
		app.VolunteerInterests = NormalizeInterests(p.VolunteerInterests)
	}
	setString(&app.NationalMembershipNumber, p.NationalMembershipNumber)
	if p.MembershipType != nil {
		app.MembershipType = *p.MembershipType
	}
	setString(&app.ProfilePhoto, p.ProfilePhoto)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

// Account is a user account provisioned on first approval.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc" bson:"-" json:"-"`

	ID               string     `bun:"id,pk" bson:"_id" json:"id"`
	Email            string     `bun:"email,notnull,unique" bson:"email" json:"email"`
	FullName         string     `bun:"full_name" bson:"full_name,omitempty" json:"full_name,omitempty"`
	Username         string     `bun:"username,notnull" bson:"username" json:"username"`
	Phone            string     `bun:"phone" bson:"phone,omitempty" json:"phone,omitempty"`
	Role             Role       `bun:"role,notnull" bson:"role" json:"role"`
	PasswordHash     string     `bun:"password_hash" bson:"password_hash,omitempty" json:"-"`
	SetupToken       string     `bun:"setup_token,nullzero" bson:"setup_token,omitempty" json:"-"`
	SetupTokenExpiry *time.Time `bun:"setup_token_expiry,nullzero" bson:"setup_token_expiry,omitempty" json:"-"`
	ResetToken       string     `bun:"reset_token,nullzero" bson:"reset_token,omitempty" json:"-"`
	ResetTokenExpiry *time.Time `bun:"reset_token_expiry,nullzero" bson:"reset_token_expiry,omitempty" json:"-"`
	LoggedInAt       *time.Time `bun:"logged_in_at,nullzero" bson:"logged_in_at,omitempty" json:"logged_in_at,omitempty"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" bson:"updated_at" json:"updated_at"`
}

// HasPassword reports whether a password was ever set
func (a *Account) HasPassword() bool {
	return a != nil && a.PasswordHash != ""
}

// Token returns the stored digest and expiry for kind
func (a *Account) Token(kind TokenKind) (string, *time.Time) {
	if a == nil {
		return "", nil
	}
	switch kind {
	case TokenSetup:
		return a.SetupToken, a.SetupTokenExpiry
	case TokenReset:
		return a.ResetToken, a.ResetTokenExpiry
	}
	return "", nil
}

// ContactMessage is a message sent through the public contact form.
type ContactMessage struct {
	bun.BaseModel `bun:"table:contact_messages,alias:cm" bson:"-" json:"-"`

	ID         string     `bun:"id,pk" bson:"_id" json:"id"`
	Name       string     `bun:"name,notnull" bson:"name" json:"name"`
	Email      string     `bun:"email,notnull" bson:"email" json:"email"`
	Phone      string     `bun:"phone" bson:"phone,omitempty" json:"phone,omitempty"`
	Subject    string     `bun:"subject,notnull" bson:"subject" json:"subject"`
	Message    string     `bun:"message,notnull" bson:"message" json:"message"`
	NotifiedAt *time.Time `bun:"notified_at,nullzero" bson:"notified_at,omitempty" json:"notified_at,omitempty"`
	CreatedAt  time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" bson:"created_at" json:"created_at"`
}

// NormalizeEmail trims and lower-cases an address so it can be matched by equality.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UsernameFromEmail returns the local part of email.
func UsernameFromEmail(email string) string {
	email = NormalizeEmail(email)
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

// NormalizeInterests trims, drops empties and deduplicates, keeping a stable order.
func NormalizeInterests(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

package membership

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

var membershipTypes = []interface{}{MembershipTypeGeneral, MembershipTypeActive}

var membershipStatuses = []interface{}{
	string(StatusPending),
	string(StatusApproved),
	string(StatusBlocked),
}

// CreateApplicationRequest is the public application payload. It has no
// status field, new applications are always pending.
type CreateApplicationRequest struct {
	FullName                 string         `json:"full_name" form:"full_name"`
	Email                    string         `json:"email" form:"email"`
	Phone                    string         `json:"phone" form:"phone"`
	Address                  string         `json:"address" form:"address"`
	City                     string         `json:"city" form:"city"`
	State                    string         `json:"state" form:"state"`
	PostalCode               string         `json:"postal_code" form:"postal_code"`
	Country                  string         `json:"country" form:"country"`
	DateOfBirth              string         `json:"date_of_birth" form:"date_of_birth"`
	Gender                   string         `json:"gender" form:"gender"`
	Profession               string         `json:"profession" form:"profession"`
	Skills                   string         `json:"skills" form:"skills"`
	VolunteerInterests       []string       `json:"volunteer_interests" form:"volunteer_interests"`
	NationalMembershipNumber string         `json:"national_membership_number" form:"national_membership_number"`
	MembershipType           MembershipType `json:"membership_type" form:"membership_type"`
	ProfilePhoto             string         `json:"profile_photo" form:"profile_photo"`
}

// Validate will run validation rules
func (r CreateApplicationRequest) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.FullName, validation.Required, validation.Length(2, 120)),
			validation.Field(&r.Email, validation.Required, is.Email),
			validation.Field(&r.Phone, validation.By(phoneRule(DefaultPhoneRegion))),
			validation.Field(&r.DateOfBirth, validation.Date("2006-01-02")),
			validation.Field(&r.MembershipType, validation.Required, validation.In(membershipTypes...)),
			validation.Field(&r.ProfilePhoto, is.URL),
			validation.Field(&r.VolunteerInterests, validation.Length(0, 32)),
		)
	}, "Invalid membership application payload")
}

// ToApplication builds the record to store
func (r CreateApplicationRequest) ToApplication() *Application {
	phone, err := NormalizePhone(r.Phone, DefaultPhoneRegion)
	if err != nil {
		phone = strings.TrimSpace(r.Phone)
	}
	return &Application{
		FullName:                 strings.TrimSpace(r.FullName),
		Email:                    NormalizeEmail(r.Email),
		Phone:                    phone,
		Address:                  strings.TrimSpace(r.Address),
		City:                     strings.TrimSpace(r.City),
		State:                    strings.TrimSpace(r.State),
		PostalCode:               strings.TrimSpace(r.PostalCode),
		Country:                  strings.TrimSpace(r.Country),
		DateOfBirth:              strings.TrimSpace(r.DateOfBirth),
		Gender:                   strings.TrimSpace(r.Gender),
		Profession:               strings.TrimSpace(r.Profession),
		Skills:                   strings.TrimSpace(r.Skills),
		VolunteerInterests:       NormalizeInterests(r.VolunteerInterests),
		NationalMembershipNumber: strings.TrimSpace(r.NationalMembershipNumber),
		MembershipType:           r.MembershipType,
		ProfilePhoto:             strings.TrimSpace(r.ProfilePhoto),
		MembershipStatus:         StatusPending,
	}
}

// UpdateApplicationRequest is the admin patch payload. Absent fields are
// left untouched.
type UpdateApplicationRequest struct {
	FullName                 *string         `json:"full_name"`
	Email                    *string         `json:"email"`
	Phone                    *string         `json:"phone"`
	Address                  *string         `json:"address"`
	City                     *string         `json:"city"`
	State                    *string         `json:"state"`
	PostalCode               *string         `json:"postal_code"`
	Country                  *string         `json:"country"`
	DateOfBirth              *string         `json:"date_of_birth"`
	Gender                   *string         `json:"gender"`
	Profession               *string         `json:"profession"`
	Skills                   *string         `json:"skills"`
	VolunteerInterests       []string        `json:"volunteer_interests"`
	NationalMembershipNumber *string         `json:"national_membership_number"`
	MembershipType           *MembershipType `json:"membership_type"`
	MembershipStatus         *string         `json:"membership_status"`
	ProfilePhoto             *string         `json:"profile_photo"`
	Reason                   string          `json:"reason"`
}

// Validate will run validation rules
func (r UpdateApplicationRequest) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.FullName, validation.NilOrNotEmpty, validation.Length(2, 120)),
			validation.Field(&r.Email, validation.NilOrNotEmpty, is.Email),
			validation.Field(&r.Phone, validation.By(phoneRule(DefaultPhoneRegion))),
			validation.Field(&r.DateOfBirth, validation.Date("2006-01-02")),
			validation.Field(&r.MembershipType, validation.NilOrNotEmpty, validation.In(membershipTypes...)),
			validation.Field(&r.MembershipStatus, validation.NilOrNotEmpty, validation.In(membershipStatuses...)),
			validation.Field(&r.ProfilePhoto, is.URL),
		)
	}, "Invalid membership update payload")
}

// Status returns the requested status, if any
func (r UpdateApplicationRequest) Status() (MembershipStatus, bool) {
	if r.MembershipStatus == nil {
		return "", false
	}
	return MembershipStatus(strings.TrimSpace(*r.MembershipStatus)), true
}

// Patch returns the field changes carried by the request
func (r UpdateApplicationRequest) Patch() ApplicationPatch {
	patch := ApplicationPatch{
		FullName:                 r.FullName,
		Email:                    r.Email,
		Address:                  r.Address,
		City:                     r.City,
		State:                    r.State,
		PostalCode:               r.PostalCode,
		Country:                  r.Country,
		DateOfBirth:              r.DateOfBirth,
		Gender:                   r.Gender,
		Profession:               r.Profession,
		Skills:                   r.Skills,
		VolunteerInterests:       r.VolunteerInterests,
		NationalMembershipNumber: r.NationalMembershipNumber,
		MembershipType:           r.MembershipType,
		ProfilePhoto:             r.ProfilePhoto,
	}
	if r.Phone != nil {
		phone, err := NormalizePhone(*r.Phone, DefaultPhoneRegion)
		if err != nil {
			phone = *r.Phone
		}
		patch.Phone = &phone
	}
	return patch
}

// SetPasswordRequest redeems a setup or reset token
type SetPasswordRequest struct {
	Token    string `json:"token" form:"token"`
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r SetPasswordRequest) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, MaxPasswordLength)),
			validation.Field(&r.Token, validation.Required),
		)
	}, "Invalid set password payload")
}

// PasswordResetRequest starts a password reset
type PasswordResetRequest struct {
	Email string `json:"email" form:"email"`
}

// Validate will run validation rules
func (r PasswordResetRequest) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Email, validation.Required, is.Email),
		)
	}, "Invalid password reset payload")
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Email, validation.Required, is.Email),
			validation.Field(&r.Password, validation.Required),
		)
	}, "Invalid login payload")
}

// ContactRequest is the contact form payload
type ContactRequest struct {
	Name    string `json:"name" form:"name"`
	Email   string `json:"email" form:"email"`
	Phone   string `json:"phone" form:"phone"`
	Subject string `json:"subject" form:"subject"`
	Message string `json:"message" form:"message"`
}

// Validate will run validation rules
func (r ContactRequest) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Name, validation.Required, validation.Length(2, 120)),
			validation.Field(&r.Email, validation.Required, is.Email),
			validation.Field(&r.Phone, validation.By(phoneRule(DefaultPhoneRegion))),
			validation.Field(&r.Subject, validation.Required, validation.Length(2, 200)),
			validation.Field(&r.Message, validation.Required, validation.Length(2, 5000)),
		)
	}, "Invalid contact payload")
}

// ToMessage maps the request onto the command message
func (r ContactRequest) ToMessage() SubmitContactMessage {
	phone, err := NormalizePhone(r.Phone, DefaultPhoneRegion)
	if err != nil {
		phone = strings.TrimSpace(r.Phone)
	}
	return SubmitContactMessage{
		Name:    strings.TrimSpace(r.Name),
		Email:   r.Email,
		Phone:   phone,
		Subject: strings.TrimSpace(r.Subject),
		Message: strings.TrimSpace(r.Message),
	}
}

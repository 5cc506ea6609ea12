// Package config holds the server configuration loaded through go-config.
package config

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	DriverMongo    = "mongo"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	MailTransportSMTP = "smtp"
	MailTransportLog  = "log"
)

type Config struct {
	Name        string      `koanf:"name" json:"name"`
	PhoneRegion string      `koanf:"phone_region" json:"phone_region"`
	Server      Server      `koanf:"server" json:"server"`
	Persistence Persistence `koanf:"persistence" json:"persistence"`
	Auth        Auth        `koanf:"auth" json:"auth"`
	Mail        Mail        `koanf:"mail" json:"mail"`
	Links       Links       `koanf:"links" json:"links"`
}

type Server struct {
	Address        string `koanf:"address" json:"address"`
	MetricsAddress string `koanf:"metrics_address" json:"metrics_address"`
	Debug          bool   `koanf:"debug" json:"debug"`
}

type Persistence struct {
	Debug                 bool   `koanf:"debug" json:"debug"`
	Driver                string `koanf:"driver" json:"driver"`
	DSN                   string `koanf:"dsn" json:"dsn"`
	Database              string `koanf:"database" json:"database"`
	PingTimeoutExpression string `koanf:"ping_timeout" json:"ping_timeout"`
	OtelIdentifier        string `koanf:"otel_identifier" json:"otel_identifier"`
}

type Auth struct {
	SigningKey      string   `koanf:"signing_key" json:"signing_key"`
	Issuer          string   `koanf:"issuer" json:"issuer"`
	Audience        []string `koanf:"audience" json:"audience"`
	TokenExpiration int      `koanf:"token_expiration" json:"token_expiration"`
	BcryptCost      int      `koanf:"bcrypt_cost" json:"bcrypt_cost"`
	AdminEmail      string   `koanf:"admin_email" json:"admin_email"`
	AdminPassword   string   `koanf:"admin_password" json:"admin_password"`
	AdminName       string   `koanf:"admin_name" json:"admin_name"`
}

type Mail struct {
	Transport    string `koanf:"transport" json:"transport"`
	Host         string `koanf:"host" json:"host"`
	Port         int    `koanf:"port" json:"port"`
	Username     string `koanf:"username" json:"username"`
	Password     string `koanf:"password" json:"password"`
	StartTLS     bool   `koanf:"starttls" json:"starttls"`
	From         string `koanf:"from" json:"from"`
	AdminEmail   string `koanf:"admin_email" json:"admin_email"`
	TemplatesDir string `koanf:"templates_dir" json:"templates_dir"`
	SiteName     string `koanf:"site_name" json:"site_name"`
}

type Links struct {
	BaseURL           string `koanf:"base_url" json:"base_url"`
	SetPasswordPath   string `koanf:"set_password_path" json:"set_password_path"`
	ResetPasswordPath string `koanf:"reset_password_path" json:"reset_password_path"`
}

// Validate will run validation rules
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Server),
		validation.Field(&c.Persistence),
		validation.Field(&c.Auth),
		validation.Field(&c.Mail),
		validation.Field(&c.Links),
	)
}

func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Address, validation.Required),
	)
}

func (p Persistence) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Driver, validation.Required, validation.In(DriverMongo, DriverSQLite, DriverPostgres)),
		validation.Field(&p.DSN, validation.Required),
		validation.Field(&p.Database, requiredIf(p.GetDriver() == DriverMongo)...),
	)
}

func (a Auth) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&a.AdminEmail, is.Email),
		validation.Field(&a.AdminPassword, append(requiredIf(a.AdminEmail != ""), validation.Length(6, 72))...),
	)
}

func (m Mail) Validate() error {
	smtp := m.Transport == MailTransportSMTP
	return validation.ValidateStruct(&m,
		validation.Field(&m.Transport, validation.Required, validation.In(MailTransportSMTP, MailTransportLog)),
		validation.Field(&m.Host, requiredIf(smtp)...),
		validation.Field(&m.From, requiredIf(smtp)...),
		validation.Field(&m.AdminEmail, is.Email),
	)
}

func (l Links) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.BaseURL, validation.Required, is.URL),
	)
}

func requiredIf(cond bool) []validation.Rule {
	if cond {
		return []validation.Rule{validation.Required}
	}
	return nil
}

func (c Config) GetServer() Server {
	return c.Server
}

func (c Config) GetPersistence() Persistence {
	return c.Persistence
}

func (c Config) GetAuth() Auth {
	return c.Auth
}

func (c Config) GetMail() Mail {
	return c.Mail
}

func (c Config) GetLinks() Links {
	return c.Links
}

func (p Persistence) GetDebug() bool {
	return p.Debug
}

func (p Persistence) GetDriver() string {
	return strings.ToLower(strings.TrimSpace(p.Driver))
}

// GetPingTimeout parses the ping timeout, defaulting to five seconds.
func (p Persistence) GetPingTimeout() time.Duration {
	dur, err := time.ParseDuration(p.PingTimeoutExpression)
	if err != nil || dur <= 0 {
		return 5 * time.Second
	}
	return dur
}

// GetServer returns the connection string
func (p Persistence) GetServer() string {
	return p.DSN
}

func (p Persistence) GetDatabase() string {
	return p.Database
}

func (p Persistence) GetOtelIdentifier() string {
	return p.OtelIdentifier
}

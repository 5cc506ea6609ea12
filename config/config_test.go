package config_test

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/goliatone/go-membership/config"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadDefaults(t *testing.T) config.Config {
	t.Helper()
	raw, err := os.ReadFile("app.json")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, json.Unmarshal(raw, &cfg))
	return cfg
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := loadDefaults(t)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, config.DriverSQLite, cfg.GetPersistence().GetDriver())
	assert.Equal(t, 5*time.Second, cfg.GetPersistence().GetPingTimeout())
}

var _ persistence.Config = config.Persistence{}

func TestPersistenceGetters(t *testing.T) {
	cfg := loadDefaults(t)
	p := cfg.GetPersistence()

	assert.False(t, p.GetDebug())
	assert.Equal(t, "file:membership.db?cache=shared&_fk=1", p.GetServer())
	assert.Equal(t, "membership", p.GetDatabase())
	assert.Empty(t, p.GetOtelIdentifier())

	p.Driver = "  Postgres "
	p.PingTimeoutExpression = "nope"
	p.OtelIdentifier = "membership-db"
	p.Debug = true
	assert.Equal(t, config.DriverPostgres, p.GetDriver())
	assert.Equal(t, 5*time.Second, p.GetPingTimeout())
	assert.Equal(t, "membership-db", p.GetOtelIdentifier())
	assert.True(t, p.GetDebug())
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Persistence.Driver = "oracle"
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresSigningKey(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Auth.SigningKey = ""
	assert.Error(t, cfg.Validate())

	cfg.Auth.SigningKey = "short"
	assert.Error(t, cfg.Validate())
}

func TestValidateMongoNeedsDatabase(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Persistence.Driver = config.DriverMongo
	cfg.Persistence.DSN = "mongodb://localhost:27017"
	cfg.Persistence.Database = ""
	assert.Error(t, cfg.Validate())

	cfg.Persistence.Database = "membership"
	assert.NoError(t, cfg.Validate())
}

func TestValidateSMTPNeedsHost(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Mail.Transport = config.MailTransportSMTP
	cfg.Mail.Host = ""
	assert.Error(t, cfg.Validate())

	cfg.Mail.Host = "smtp.example.org"
	assert.NoError(t, cfg.Validate())
}

func TestValidateAdminPasswordWhenEmailSet(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Auth.AdminEmail = "admin@example.org"
	cfg.Auth.AdminPassword = ""
	assert.Error(t, cfg.Validate())

	cfg.Auth.AdminPassword = "s3cret!"
	assert.NoError(t, cfg.Validate())
}

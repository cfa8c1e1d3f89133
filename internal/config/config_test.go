package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("appupdater")
	require.NoError(t, err)

	assert.Equal(t, "appupdater", cfg.Server.ServiceName)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.False(t, cfg.NATS.Enabled)
	assert.Equal(t, "appupdater", cfg.NATS.SubjectPrefix)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 200*time.Millisecond, cfg.Updater.ProgressInterval)
	assert.Equal(t, 20*time.Second, cfg.Updater.ConnectTimeout)
	assert.Equal(t, "none", cfg.Updater.InstallMode)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("UPDATER_PROGRESS_INTERVAL", "1s")
	t.Setenv("UPDATER_INSECURE_SKIP_VERIFY", "true")
	t.Setenv("UPDATER_INSTALL_MODE", "exec")
	t.Setenv("UPDATER_INSTALL_COMMAND", "pm install")
	t.Setenv("GRPC_PORT", "not-a-number")

	cfg, err := Load("appupdater")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, time.Second, cfg.Updater.ProgressInterval)
	assert.True(t, cfg.Updater.InsecureSkipVerify)
	assert.Equal(t, "pm install", cfg.Updater.InstallCommand)
	assert.Equal(t, 9090, cfg.Server.GRPCPort, "invalid values fall back to defaults")
}

func TestLoad_InvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"driver", map[string]string{"DB_DRIVER": "mysql"}},
		{"install mode", map[string]string{"UPDATER_INSTALL_MODE": "magic"}},
		{"exec without command", map[string]string{"UPDATER_INSTALL_MODE": "exec"}},
		{"replace without target", map[string]string{"UPDATER_INSTALL_MODE": "replace"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("appupdater")
			assert.Error(t, err)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", d.DSN())
}

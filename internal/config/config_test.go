package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ops-task-service", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.SLA.SweepInterval())
	assert.Equal(t, 5*time.Minute, cfg.SLA.WarningWindow())
	assert.Equal(t, "X-Signature", cfg.Webhooks.SignatureHeader)
	assert.Equal(t, "#ops-escalations", cfg.Escalation.DefaultRoute)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SLA_SWEEP_INTERVAL_SECONDS", "10")
	t.Setenv("SLA_WARNING_MINUTES", "15")
	t.Setenv("WEBHOOK_HOSTAWAY_SECRET", "h-secret")
	t.Setenv("WEBHOOK_BREEZEWAY_SECRET", "b-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.SLA.SweepInterval())
	assert.Equal(t, 15*time.Minute, cfg.SLA.WarningWindow())
	assert.Equal(t, "h-secret", cfg.Webhooks.SecretFor("hostaway"))
	assert.Equal(t, "b-secret", cfg.Webhooks.SecretFor("breezeway"))
	assert.Equal(t, "", cfg.Webhooks.SecretFor("unknown"))
}

func TestSweepIntervalFloorsInvalidValues(t *testing.T) {
	sla := SLAConfig{SweepIntervalSeconds: 0, WarningMinutes: -1}
	assert.Equal(t, 30*time.Second, sla.SweepInterval())
	assert.Equal(t, 5*time.Minute, sla.WarningWindow())
}

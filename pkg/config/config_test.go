package config_test

import (
	"path/filepath"
	"testing"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/verifactu/pkg/config"
)

func TestLoad_ValoresPorDefecto(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cadena")
	t.Setenv("VERIFACTU_LEDGER_ROOT", root)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "SHA-256", cfg.Verifactu.HashAlgorithm)
	assert.Equal(t, "UTF-8", cfg.Verifactu.HashEncoding)
	assert.Equal(t, "Europe/Madrid", cfg.Verifactu.Timezone)
	assert.Equal(t, "dev", cfg.Verifactu.Env)
	assert.Equal(t, 5, cfg.Verifactu.TickSeconds)
	assert.Equal(t, 60, cfg.Verifactu.DefaultWaitSeconds)
	assert.Equal(t, 1000, cfg.Verifactu.MaxBatch)
	assert.True(t, cfg.Verifactu.AuditEnabled)
	assert.False(t, cfg.DB.Enabled)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	require.NoError(t, cfg.Validate())
	assert.DirExists(t, root)
}

func TestLoad_VariablesDeEntorno(t *testing.T) {
	t.Setenv("VERIFACTU_LEDGER_ROOT", t.TempDir())
	t.Setenv("VERIFACTU_MAX_BATCH", "250")
	t.Setenv("VERIFACTU_AUDIT_ENABLED", "false")
	t.Setenv("DB_ENABLED", "true")
	t.Setenv("DB_PASSWORD", "p@ss:word")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Verifactu.MaxBatch)
	assert.False(t, cfg.Verifactu.AuditEnabled)
	assert.True(t, cfg.DB.Enabled)
	assert.Contains(t, cfg.DB.ConnectionString(), "p%40ss%3Aword")
}

func TestValidate_Errores(t *testing.T) {
	t.Setenv("VERIFACTU_LEDGER_ROOT", "")
	t.Setenv("VERIFACTU_TIMEZONE", "Marte/Olympus")
	t.Setenv("VERIFACTU_ENV", "prod")
	t.Setenv("VERIFACTU_MAX_BATCH", "5000")

	cfg, err := config.Load()
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "VERIFACTU_LEDGER_ROOT")
	assert.Contains(t, err.Error(), "Marte/Olympus")
	assert.Contains(t, err.Error(), "VERIFACTU_CERT_PATH")
	assert.Contains(t, err.Error(), "VERIFACTU_MAX_BATCH")
}

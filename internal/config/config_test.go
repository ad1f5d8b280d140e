package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const baseYAML = `
jwt:
  access_secret: ` + testSecret + `
  refresh_secret: ` + testSecret + `
  share_secret: ` + testSecret + `
  upload_secret: ` + testSecret + `
minio:
  access_key_id: minio
  secret_access_key: minio-secret
`

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, "minio", cfg.Storage.Type)
	assert.Equal(t, DefaultMaxFileSizeBytes, cfg.Upload.MaxFileSize)
	assert.Equal(t, DefaultMultipartPartSizeBytes, cfg.Upload.PartSize)
	assert.Equal(t, DefaultAllowedMimeTypes, cfg.Upload.AllowedMimeTypes)
	assert.Equal(t, 900*time.Second, cfg.Storage.PresignedURLExpiry)
	assert.Equal(t, 90*time.Second, cfg.ClamAV.Timeout)
	assert.Equal(t, 5, cfg.Scan.SweepLimit)
	assert.Equal(t, 600*time.Second, cfg.JWT.ShareVerificationTTL)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("FLUXSHARE_SERVER_PORT", "8088")
	t.Setenv("FLUXSHARE_UPLOAD_ALLOWED_MIME_TYPES", "image/png, application/pdf")

	cfg, err := LoadConfig(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, "8088", cfg.Server.Port)
	assert.Equal(t, []string{"image/png", "application/pdf"}, cfg.Upload.AllowedMimeTypes)
	assert.True(t, cfg.Upload.IsMimeAllowed("IMAGE/PNG"))
	assert.False(t, cfg.Upload.IsMimeAllowed("video/mp4"))
}

func TestLoadConfig_ShortSecretRejected(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
jwt:
  access_secret: short
`))
	require.Error(t, err)
}

func TestLoadConfig_UnknownStorage(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, baseYAML+`
storage:
  type: ftp
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.type")
}

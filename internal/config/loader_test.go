package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withHome points HOME at a temp dir and returns its reviewd config dir.
func withHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GITHUB_WEBHOOK_SECRET", "")
	dir := filepath.Join(home, ".config", "reviewd")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return dir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoad_YAML(t *testing.T) {
	dir := withHome(t)
	path := writeConfig(t, dir, `
server:
  http_port: 8088
  shutdown_timeout: 30s
temporal:
  namespace: reviews-prod
review:
  specialists: [security, performance, style]
  findings_per_specialist: 3
  window_duration: 15m
agents:
  provider: openai
  model: gpt-4.1
  openai_api_key: sk-test
github:
  token: ghp_fromfile
sources:
  git_roots: [/src]
  max_content_bytes: 65536
`, 0600)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "reviews-prod", cfg.Temporal.Namespace)
	assert.Equal(t, "localhost:7233", cfg.Temporal.HostPort, "unset keys keep defaults")
	assert.Equal(t, []string{"security", "performance", "style"}, cfg.Review.Specialists)
	assert.Equal(t, 3, cfg.Review.FindingsPerSpecialist)
	assert.Equal(t, 15*time.Minute, cfg.Review.WindowDuration.Duration())
	assert.Equal(t, ProviderOpenAI, cfg.Agents.Provider)
	assert.Equal(t, "sk-test", cfg.Agents.APIKey().Value())
	assert.Equal(t, "ghp_fromfile", cfg.GitHub.Token.Value())
	assert.Equal(t, []string{"/src"}, cfg.Sources.GitRoots)
	assert.Equal(t, 65536, cfg.Sources.MaxContentBytes)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := withHome(t)
	path := writeConfig(t, dir, "server:\n  http_port: 8088\n", 0600)

	t.Setenv("REVIEWD_SERVER_HTTP_PORT", "7000")
	t.Setenv("REVIEWD_AGENTS_ANTHROPIC_API_KEY", "sk-ant-env")
	t.Setenv("REVIEWD_REVIEW_WINDOW_EXTENSION", "3m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "sk-ant-env", cfg.Agents.AnthropicAPIKey.Value())
	assert.Equal(t, 3*time.Minute, cfg.Review.WindowExtension.Duration())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	withHome(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestLoad_ConventionalEnvFallback(t *testing.T) {
	withHome(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-conventional")
	t.Setenv("GITHUB_TOKEN", "ghp_conventional")
	t.Setenv("GITHUB_WEBHOOK_SECRET", "whsec")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-conventional", cfg.Agents.AnthropicAPIKey.Value())
	assert.Equal(t, "ghp_conventional", cfg.GitHub.Token.Value())
	assert.Equal(t, "whsec", cfg.GitHub.WebhookSecret.Value())
}

func TestLoad_InvalidValues(t *testing.T) {
	dir := withHome(t)
	path := writeConfig(t, dir, "agents:\n  provider: mystery\n", 0600)

	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown agents provider")
}

func TestLoad_RejectsInsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs")
	}
	dir := withHome(t)
	path := writeConfig(t, dir, "server:\n  http_port: 8088\n", 0644)

	_, err := Load(path)
	assert.ErrorContains(t, err, "insecure config file permissions")
}

func TestLoad_RejectsPathOutsideConfigDirs(t *testing.T) {
	withHome(t)
	outside := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(outside, []byte("{}"), 0600))

	_, err := Load(outside)
	assert.ErrorContains(t, err, "config file must be in")
}

func TestLoad_RejectsSiblingPrefixDir(t *testing.T) {
	dir := withHome(t)
	sibling := dir + "-evil"
	require.NoError(t, os.MkdirAll(sibling, 0700))

	_, err := Load(filepath.Join(sibling, "config.yaml"))
	assert.ErrorContains(t, err, "config file must be in")
}

func TestLoad_RejectsLargeFile(t *testing.T) {
	dir := withHome(t)
	big := "# " + strings.Repeat("x", maxConfigFileSize) + "\n"
	path := writeConfig(t, dir, big, 0600)

	_, err := Load(path)
	assert.ErrorContains(t, err, "too large")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.http_port", envKey("REVIEWD_SERVER_HTTP_PORT"))
	assert.Equal(t, "agents.openai_base_url", envKey("REVIEWD_AGENTS_OPENAI_BASE_URL"))
	assert.Equal(t, "debug", envKey("REVIEWD_DEBUG"))
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandPath("~/.config/reviewd/reviews.db")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "reviewd", "reviews.db"), got)

	got, err = ExpandPath("/var/lib/reviewd.db")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/reviewd.db", got)
}

func TestEnsureConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, EnsureConfigDir())
	info, err := os.Stat(filepath.Join(home, ".config", "reviewd"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

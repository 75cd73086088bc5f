package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func serveFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.String("listen", ":8080", "")
	fs.String("rpc", "", "")
	fs.String("token-id", "", "")
	fs.String("chain-method", "ownerOf", "")
	fs.Int("verify-limit", 1, "")
	fs.Duration("verify-window", time.Minute, "")
	fs.StringSlice("admin-token", nil, "")
	return fs
}

func TestLoadServeDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := LoadServe("", nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "ownerOf", cfg.ChainMethod)
	assert.Equal(t, 1, cfg.VerifyLimit)
	assert.Equal(t, time.Minute, cfg.VerifyWindow)
	assert.Equal(t, 30*time.Second, cfg.ListWindow)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.PGDSN)
	assert.Nil(t, cfg.TokenID)
}

func TestLoadServeFlagsAndEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("GUILDGATE_PG_DSN", "postgres://localhost/guildgate")
	t.Setenv("GUILDGATE_VERIFY_LIMIT", "3")

	fs := serveFlags()
	require.NoError(t, fs.Parse([]string{"--rpc", "http://node", "--token-id", "0x10", "--admin-token", "a,b"}))

	cfg, err := LoadServe("", fs)
	require.NoError(t, err)
	assert.Equal(t, "http://node", cfg.RPCURL)
	assert.Equal(t, int64(16), cfg.TokenID.Int64())
	assert.Equal(t, "postgres://localhost/guildgate", cfg.PGDSN)
	assert.Equal(t, 3, cfg.VerifyLimit)
	assert.Equal(t, []string{"a", "b"}, cfg.AdminTokens)
}

func TestLoadServeConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "guildgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9000\"\nchain-method: balanceOf\nrpc: http://node\nlist-window: 2m\n"), 0o644))

	cfg, err := LoadServe(path, nil)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "balanceOf", cfg.ChainMethod)
	assert.Equal(t, 2*time.Minute, cfg.ListWindow)
}

func TestLoadServeRejectsBadSettings(t *testing.T) {
	chdirTemp(t)

	cases := []struct {
		name string
		args []string
	}{
		{name: "bad token id", args: []string{"--token-id", "abc"}},
		{name: "unknown method", args: []string{"--chain-method", "tokenURI"}},
		{name: "owner of without token", args: []string{"--rpc", "http://node"}},
		{name: "zero verify limit", args: []string{"--verify-limit", "0"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := serveFlags()
			require.NoError(t, fs.Parse(tc.args))
			_, err := LoadServe("", fs)
			assert.Error(t, err)
		})
	}
}

func TestLoadPollDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := LoadPoll("", nil)
	require.NoError(t, err)
	assert.Contains(t, cfg.FeedURL, "all_hour.geojson")
	assert.Equal(t, time.Minute, cfg.Interval)
	assert.Equal(t, 24.0, cfg.MinLat)
	assert.Equal(t, 153.0, cfg.MaxLon)
	assert.Equal(t, 100, cfg.DedupSize)
	assert.Equal(t, "Japan", cfg.Region)
	assert.Empty(t, cfg.WebhookURL)
}

func TestLoadPollEnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("GUILDGATE_INTERVAL", "30s")
	t.Setenv("GUILDGATE_WEBHOOK_URL", "https://chat.example/hook")
	t.Setenv("GUILDGATE_DEDUP_SIZE", "0")

	_, err := LoadPoll("", nil)
	assert.Error(t, err)

	t.Setenv("GUILDGATE_DEDUP_SIZE", "20")
	cfg, err := LoadPoll("", nil)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, "https://chat.example/hook", cfg.WebhookURL)
	assert.Equal(t, 20, cfg.DedupSize)
}

func TestGetStringSliceSplitsCommaList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitAndClean(" a ,, b "))
	assert.Nil(t, splitAndClean(""))
}

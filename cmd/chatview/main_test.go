package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oshilog/chatview/internal/config"
)

func TestMustLoadConfig(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantHost    string
		wantPort    int
		wantBackend string
	}{
		{
			name:        "DefaultArgs",
			args:        []string{},
			wantHost:    "127.0.0.1",
			wantPort:    8080,
			wantBackend: config.BackendSnapshot,
		},
		{
			name:        "ExplicitFlags",
			args:        []string{"-host", "0.0.0.0", "-port", "9090", "-backend", "sqlite"},
			wantHost:    "0.0.0.0",
			wantPort:    9090,
			wantBackend: config.BackendSQLite,
		},
		{
			name:        "PartialFlags",
			args:        []string{"-port", "3000"},
			wantHost:    "127.0.0.1",
			wantPort:    3000,
			wantBackend: config.BackendSnapshot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Setenv("CHATVIEW_DATA_DIR", dir)
			t.Setenv("CHATVIEW_BACKEND", "")
			t.Setenv("CHATVIEW_ANON_SECRET", "")
			cfg := mustLoadConfig("serve", tt.args, config.RegisterServeFlags)

			assert.Equal(t, tt.wantHost, cfg.Host)
			assert.Equal(t, tt.wantPort, cfg.Port)
			assert.Equal(t, tt.wantBackend, cfg.Backend)
			assert.Equal(t, dir, cfg.DataDir)
			assert.Equal(t, filepath.Join(dir, "mirror.db"), cfg.DBPath)
			assert.NotEmpty(t, cfg.AnonSecret)
		})
	}
}

func TestMustAnalyticsOptionsStableLabels(t *testing.T) {
	t.Setenv("CHATVIEW_DATA_DIR", t.TempDir())
	t.Setenv("CHATVIEW_ANON_SECRET", "")
	first := mustAnalyticsOptions(
		mustLoadConfig("query", nil, config.RegisterSourceFlags),
	)
	second := mustAnalyticsOptions(
		mustLoadConfig("query", nil, config.RegisterSourceFlags),
	)
	assert.Equal(t,
		first.Anonymizer.Label("tenant-1"),
		second.Anonymizer.Label("tenant-1"),
	)
}

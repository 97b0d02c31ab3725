package internal

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger_FanoutToFile(t *testing.T) {
	var out bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "xmledit.log")

	logger, closeLog, err := newLogger(ApplicationConfig{LogLevel: slog.LevelInfo, LogFile: logFile}, &out)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Info("catalog: synced", slog.Int("documents", 3))
	logger.Debug("below level")
	if err := closeLog(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	for name, got := range map[string]string{"writer": out.String(), "file": string(data)} {
		if !strings.Contains(got, `"msg":"catalog: synced"`) || !strings.Contains(got, `"documents":3`) {
			t.Errorf("%s output = %s", name, got)
		}
		if strings.Contains(got, "below level") {
			t.Errorf("%s output contains a debug record", name)
		}
	}
}

func TestNewLogger_BadFile(t *testing.T) {
	_, _, err := newLogger(ApplicationConfig{LogFile: filepath.Join(t.TempDir(), "missing", "x.log")}, io.Discard)
	if err == nil {
		t.Fatal("expected error for unwritable log file")
	}
}

func TestNewGateway(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	ctx := context.Background()

	tests := []struct {
		cfg        AIConfig
		configured bool
		model      string
	}{
		{AIConfig{Provider: ProviderMock}, true, "local-mock-ai"},
		{AIConfig{Provider: ProviderOpenAI, ModelID: "gpt-4o-mini"}, false, "gpt-4o-mini"},
		{AIConfig{Provider: ProviderOpenAI, ModelID: "gpt-4o-mini", APIKey: "sk-test"}, true, "gpt-4o-mini"},
		{AIConfig{Provider: ProviderBedrock, Region: "eu-west-1"}, false, ""},
	}
	for _, tt := range tests {
		g, err := newGateway(ctx, tt.cfg, logger)
		if err != nil {
			t.Fatalf("%s: %v", tt.cfg.Provider, err)
		}
		info := g.Info()
		if info.Provider != tt.cfg.Provider || info.Configured != tt.configured {
			t.Errorf("%s: info = %+v", tt.cfg.Provider, info)
		}
		if tt.model != "" && info.Model != tt.model {
			t.Errorf("%s: model = %q, want %q", tt.cfg.Provider, info.Model, tt.model)
		}
	}

	if _, err := newGateway(ctx, AIConfig{Provider: "gemini"}, logger); err == nil {
		t.Error("unknown provider should fail")
	}
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Error("Run without config should fail")
	}
	if err := RunMCP(context.Background()); err == nil {
		t.Error("RunMCP without config should fail")
	}
}

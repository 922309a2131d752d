// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestWithComponentAnnotatesField(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "spotbridge-test", Version: "test"})
	defer Configure(Config{})

	logger := WithComponent("supervisor")
	logger.Info().Str(FieldEvent, "supervisor.started").Msg("started")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["component"] != "supervisor" {
		t.Errorf("expected component=supervisor, got %v", entry["component"])
	}
	if entry["event"] != "supervisor.started" {
		t.Errorf("expected event=supervisor.started, got %v", entry["event"])
	}
	if entry["service"] != "spotbridge-test" {
		t.Errorf("expected service=spotbridge-test, got %v", entry["service"])
	}
}

func TestConfigureLastCallWins(t *testing.T) {
	var first, second bytes.Buffer
	Configure(Config{Output: &first, Service: "one"})
	Configure(Config{Output: &second, Service: "two"})
	defer Configure(Config{})

	logger := Base()
	logger.Info().Msg("hello")

	if first.Len() != 0 {
		t.Errorf("first writer should not receive output after reconfigure, got %q", first.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal(second.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["service"] != "two" {
		t.Errorf("expected service=two, got %v", entry["service"])
	}
}

func TestConfigureInvalidLevelFallsBack(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "not-a-level", Output: &buf})
	defer Configure(Config{})

	logger := Base()
	logger.Info().Msg("visible at info")
	if buf.Len() == 0 {
		t.Error("info logging should remain enabled with an unparseable level")
	}
}

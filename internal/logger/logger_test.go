package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestNewEmitsServiceField(t *testing.T) {
	log := New("guard-test")

	var buf bytes.Buffer
	log = log.Output(&buf)
	log.Info().Msg("hello")

	var m map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if m["service"] != "guard-test" {
		t.Fatalf("missing service field: %v", m)
	}
	if m["message"] != "hello" {
		t.Fatalf("missing message: %v", m)
	}
}

func TestErrorEventsCarryStacks(t *testing.T) {
	log := New("guard-test")

	var buf bytes.Buffer
	log = log.Output(&buf)
	log.Error().Stack().Err(errors.New("boom")).Msg("failed")

	var m map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if _, ok := m["stack"]; !ok {
		t.Fatalf("expected stack field on error event: %v", m)
	}
}

package domain_test

import (
	"encoding/json"
	"testing"

	"presence-gateway/internal/domain"
)

func TestEntityFromChannel(t *testing.T) {
	entity, err := domain.EntityFromChannel("/event/record_open")
	if err != nil {
		t.Fatalf("EntityFromChannel failed: %v", err)
	}
	if entity != "record_open" {
		t.Errorf("Expected entity record_open, got %s", entity)
	}

	for _, channel := range []string{"", "record_open", "/event/", "//"} {
		if _, err := domain.EntityFromChannel(channel); err == nil {
			t.Errorf("Expected error for channel %q", channel)
		}
	}
}

func TestFieldString(t *testing.T) {
	payload := map[string]interface{}{
		"plain":   "value",
		"wrapped": domain.StringField("wrapped-value"),
		"number":  42,
	}

	if v, ok := domain.FieldString(payload, "plain"); !ok || v != "value" {
		t.Errorf("plain field: got %q, %v", v, ok)
	}
	if v, ok := domain.FieldString(payload, "wrapped"); !ok || v != "wrapped-value" {
		t.Errorf("wrapped field: got %q, %v", v, ok)
	}
	if _, ok := domain.FieldString(payload, "number"); ok {
		t.Error("numeric field should not read as a string")
	}
	if _, ok := domain.FieldString(payload, "missing"); ok {
		t.Error("missing field should not read as a string")
	}
}

func TestHeartbeatFrameIsBareObject(t *testing.T) {
	data, err := json.Marshal(domain.OutboundMessage{})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("Expected keep-alive frame {}, got %s", data)
	}
}

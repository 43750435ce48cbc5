package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestMessagePayload_TextRoundTrip(t *testing.T) {
	p := TextPayload("hello")

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"type":"text"`) {
		t.Errorf("Expected text tag, got %s", data)
	}
	if strings.Contains(string(data), "image") {
		t.Errorf("Text payload must not carry an image field: %s", data)
	}

	var back MessagePayload
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back != p {
		t.Errorf("Round trip mismatch: %+v != %+v", back, p)
	}
}

func TestMessagePayload_ImageRoundTrip(t *testing.T) {
	p := ImagePayload("CONV(:1,:2)/abc123.jpg", "look at this")

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var back MessagePayload
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back != p {
		t.Errorf("Round trip mismatch: %+v != %+v", back, p)
	}
}

func TestMessagePayload_UnknownTypeRejected(t *testing.T) {
	var p MessagePayload
	if err := json.Unmarshal([]byte(`{"type":"voice","text":"x"}`), &p); err == nil {
		t.Error("Expected unknown payload type to be rejected")
	}

	bad := MessagePayload{Type: "voice"}
	if _, err := json.Marshal(bad); err == nil {
		t.Error("Expected unknown payload type to fail marshalling")
	}
}

func TestMessagePayload_ImageWithoutKeyRejected(t *testing.T) {
	var p MessagePayload
	if err := json.Unmarshal([]byte(`{"type":"image"}`), &p); err == nil {
		t.Error("Expected image payload without key to be rejected")
	}
}

func TestConversation_HasMember(t *testing.T) {
	c := &Conversation{ID: "GROUP(x)", Members: []int64{1, 2, 3}}

	if !c.HasMember(2) {
		t.Error("Expected member 2 to be present")
	}
	if c.HasMember(4) {
		t.Error("Expected member 4 to be absent")
	}
}

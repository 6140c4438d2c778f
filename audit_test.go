package sshauth

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func auditTestConfig() Config {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	return cfg
}

// drainEvents collects events from the sink until the expected count or a
// timeout.
func drainEvents(t *testing.T, sink *ChannelSink, want int) []AuditEvent {
	t.Helper()

	var events []AuditEvent
	deadline := time.After(2 * time.Second)
	for len(events) < want {
		select {
		case event := <-sink.Events():
			events = append(events, event)
		case <-deadline:
			t.Fatalf("timed out after %d of %d events", len(events), want)
		}
	}
	return events
}

func TestAudit_EventsFlowToSink(t *testing.T) {
	sink := NewChannelSink(32)
	env := newTestEngineWithSink(t, auditTestConfig(), sink)
	env.registerUser(t, "alice@example.com", "correct-horse")
	ctx := WithClientIP(context.Background(), "203.0.113.7")

	if _, err := env.engine.Authenticate(ctx, AuthenticateRequest{
		Email:    "alice@example.com",
		Password: "wrong",
	}); err == nil {
		t.Fatal("expected failed login")
	}
	if _, err := env.engine.Authenticate(ctx, AuthenticateRequest{
		Email:    "alice@example.com",
		Password: "correct-horse",
	}); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	// account_created, login_failure, login_success.
	events := drainEvents(t, sink, 3)

	byType := map[string]AuditEvent{}
	for _, event := range events {
		byType[event.EventType] = event
	}

	failure, ok := byType[auditEventLoginFailure]
	if !ok {
		t.Fatal("missing login_failure event")
	}
	if failure.Success || failure.Error != "invalid_credentials" {
		t.Fatalf("unexpected failure event: %+v", failure)
	}
	if failure.IP != "203.0.113.7" {
		t.Fatalf("expected client IP on event, got %q", failure.IP)
	}

	success, ok := byType[auditEventLoginSuccess]
	if !ok {
		t.Fatal("missing login_success event")
	}
	if !success.Success || success.SessionID == "" {
		t.Fatalf("unexpected success event: %+v", success)
	}
}

func TestJSONWriterSink_OneEventPerLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{EventType: "login_success", Success: true})
	sink.Emit(context.Background(), AuditEvent{EventType: "login_failure", Error: "invalid_credentials"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var event AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("line 0 is not valid JSON: %v", err)
	}
	if event.EventType != "login_success" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestNoOpSink_Discards(t *testing.T) {
	var sink NoOpSink
	// Must not panic or block.
	sink.Emit(context.Background(), AuditEvent{EventType: "login_success"})
}

func TestAudit_DisabledEmitsNothing(t *testing.T) {
	sink := NewChannelSink(8)
	cfg := testConfig()
	cfg.Audit.Enabled = false

	env := newTestEngineWithSink(t, cfg, sink)
	env.registerUser(t, "alice@example.com", "correct-horse")

	select {
	case event := <-sink.Events():
		t.Fatalf("unexpected event with audit disabled: %+v", event)
	case <-time.After(100 * time.Millisecond):
	}
}

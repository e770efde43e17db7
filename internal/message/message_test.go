package message

import (
	"testing"
	"time"

	"github.com/oriys/novafabric/internal/value"
)

func TestBuilderDefaults(t *testing.T) {
	env := NewBuilder("user.created").Build()
	if env.ID == "" {
		t.Fatalf("expected generated ID")
	}
	if env.Priority != PriorityNormal {
		t.Fatalf("expected default priority normal")
	}
	if env.Type != TypeEvent {
		t.Fatalf("expected default type event")
	}
}

func TestExpired(t *testing.T) {
	env := NewBuilder("x").TTL(10 * time.Millisecond).Build()
	env.Timestamp = time.Now().Add(-time.Second)
	if !env.Expired() {
		t.Fatalf("expected message to be expired")
	}
	env2 := NewBuilder("x").Build()
	if env2.Expired() {
		t.Fatalf("message without TTL should never expire")
	}
}

func TestWireRoundTrip(t *testing.T) {
	payload := value.New()
	payload.Add("count", value.Int64(7))
	env := NewBuilder("orders.created").
		Source("svc-a").
		Target("svc-b").
		CorrelationID("corr-1").
		TraceID("trace-1").
		Priority(PriorityHigh).
		Header("x-env", "test").
		Payload(payload).
		Build()

	data, err := Encode(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Topic != env.Topic || got.Source != env.Source || got.CorrelationID != env.CorrelationID {
		t.Fatalf("metadata mismatch: %+v vs %+v", got, env)
	}
	if got.Priority != PriorityHigh {
		t.Fatalf("expected priority to round trip")
	}
	if got.Headers["x-env"] != "test" {
		t.Fatalf("expected header to round trip")
	}
	count, ok := got.Payload.GetInt64("count")
	if !ok || count != 7 {
		t.Fatalf("expected payload to round trip, got %v ok=%v", count, ok)
	}
}

func TestDecodeBadMagic(t *testing.T) {
	if _, err := Decode([]byte("short")); err == nil {
		t.Fatalf("expected error for too-short frame")
	}
	bad := []byte("XXXX0000")
	if _, err := Decode(bad); err == nil {
		t.Fatalf("expected error for bad magic")
	}
}

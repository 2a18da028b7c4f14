package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/community-hub/community-hub/internal/config"
	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_KeysByCommunity(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}

	err := p.Publish(context.Background(), Event{Type: ProfileMuted, CommunityID: "c-1", SubjectID: "p-9"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "c-1" {
		t.Errorf("key = %q, want c-1", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != ProfileMuted {
		t.Errorf("headers = %+v", msg.Headers)
	}

	var decoded Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("value is not JSON: %v", err)
	}
	if decoded.SubjectID != "p-9" || decoded.OccurredAt.IsZero() {
		t.Errorf("decoded = %+v", decoded)
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Errorf("Close() = %v, closed = %v", err, w.closed)
	}
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("broker down")}}
	err := p.Publish(context.Background(), Event{Type: PostPublished, CommunityID: "c-1"})
	if err == nil || !strings.Contains(err.Error(), "post.published") {
		t.Fatalf("Publish() = %v", err)
	}
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewTextHandler(&buf, nil)))
	if err := p.Publish(context.Background(), Event{Type: MemberLeft, CommunityID: "c-1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !strings.Contains(buf.String(), "member.left") {
		t.Errorf("log output = %q", buf.String())
	}
}

func TestNew_SelectsBackend(t *testing.T) {
	if _, ok := New(config.EventsConfig{}).(*LogPublisher); !ok {
		t.Error("disabled events should use LogPublisher")
	}
	p := New(config.EventsConfig{Enabled: true, Brokers: []string{"localhost:9092"}, Topic: "community-events"})
	if _, ok := p.(*KafkaPublisher); !ok {
		t.Errorf("enabled events should use KafkaPublisher, got %T", p)
	}
	_ = p.Close()
}

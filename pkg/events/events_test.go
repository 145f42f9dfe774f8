package events

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/damay/pkg/session"
)

func newPubSub(t *testing.T) *gochannel.GoChannel {
	t.Helper()
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

func TestNewPublisher_Validation(t *testing.T) {
	_, err := NewPublisher(nil, "topic", "k")
	require.Error(t, err)
	_, err = NewPublisher(newPubSub(t), " ", "k")
	require.Error(t, err)
}

func TestPublisher_EmitAndConsume(t *testing.T) {
	ch := newPubSub(t)
	p, err := NewPublisher(ch, "events", "chatHistory")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan Envelope, 4)
	done := make(chan error, 1)
	subscribed := make(chan struct{})
	go func() {
		msgs, err := ch.Subscribe(ctx, "events")
		if err != nil {
			done <- err
			return
		}
		close(subscribed)
		for msg := range msgs {
			env, err := Decode(msg)
			msg.Ack()
			if err != nil {
				done <- err
				return
			}
			env.SessionKey += "|" + msg.Metadata.Get(MetadataEventType)
			got <- env
		}
		done <- nil
	}()
	<-subscribed

	ev := session.Event{Type: session.EventReplied, Text: "Hai!", Recommendations: []string{"a?"}, LogLength: 2}
	require.NoError(t, p.Emit(ctx, ev))

	select {
	case env := <-got:
		require.NotEmpty(t, env.ID)
		require.Equal(t, "chatHistory|replied", env.SessionKey)
		require.Equal(t, ev, env.Event)
		require.False(t, env.Time.IsZero())
	case err := <-done:
		t.Fatalf("consumer stopped: %v", err)
	case <-ctx.Done():
		t.Fatal("event not delivered")
	}
}

func TestConsume_SkipsMalformedAndStopsOnCancel(t *testing.T) {
	ch := newPubSub(t)
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan Envelope, 4)
	errc := make(chan error, 1)
	go func() {
		errc <- Consume(ctx, ch, "events", func(_ context.Context, env Envelope) error {
			got <- env
			return nil
		})
	}()

	// gochannel drops messages published before the subscription exists
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, ch.Publish("events", message.NewMessage("bad", []byte("{nope"))))
	payload, err := json.Marshal(Envelope{SessionKey: "k", Event: session.Event{Type: session.EventReset}})
	require.NoError(t, err)
	good := message.NewMessage("good", payload)
	require.NoError(t, ch.Publish("events", good))

	select {
	case env := <-got:
		require.Equal(t, "good", env.ID)
		require.Equal(t, session.EventReset, env.Event.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consume did not stop")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLogTranscript(t *testing.T) {
	ch := newPubSub(t)
	var buf syncBuffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = LogTranscript(ctx, ch, "events", logger) }()
	time.Sleep(50 * time.Millisecond)

	p, err := NewPublisher(ch, "events", "k")
	require.NoError(t, err)
	require.NoError(t, p.Emit(ctx, session.Event{Type: session.EventFailed, Error: "boom", LogLength: 2}))

	require.Eventually(t, func() bool {
		out := buf.String()
		return strings.Contains(out, `"event":"failed"`) && strings.Contains(out, `"error":"boom"`)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFormatLine(t *testing.T) {
	line := FormatLine(Envelope{
		SessionKey: "chatHistory",
		Time:       time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local),
		Event: session.Event{
			Type:            session.EventReplied,
			Text:            "Hai!",
			Recommendations: []string{"siapa kamu?"},
			LogLength:       2,
		},
	})
	require.Equal(t, `10:00:00 chatHistory replied len=2 text="Hai!" [1]="siapa kamu?"`, line)
}

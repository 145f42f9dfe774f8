package redisstream

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSettings_WithDefaults(t *testing.T) {
	s := Settings{}.WithDefaults()
	require.Equal(t, "localhost:6379", s.Addr)
	require.Equal(t, "damay-tail", s.Group)
	require.Equal(t, "tail-1", s.Consumer)
	require.Equal(t, DefaultStream, s.Stream)

	s = Settings{Addr: "redis:6380", Stream: "x"}.WithDefaults()
	require.Equal(t, "redis:6380", s.Addr)
	require.Equal(t, "x", s.Stream)
}

func TestBuildTransport_InProcess(t *testing.T) {
	tr, err := BuildTransport(Settings{Stream: "events"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	require.False(t, tr.Redis)
	require.Equal(t, "events", tr.Topic)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs, err := tr.Subscriber.Subscribe(ctx, tr.Topic)
	require.NoError(t, err)

	require.NoError(t, tr.Publisher.Publish(tr.Topic, message.NewMessage("m1", []byte("hello"))))

	select {
	case msg := <-msgs:
		require.Equal(t, "m1", msg.UUID)
		require.Equal(t, "hello", string(msg.Payload))
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
}

func TestBuildTransport_RedisIsPublishOnly(t *testing.T) {
	// building the publisher does not dial redis
	tr, err := BuildTransport(Settings{Enabled: true, Addr: "127.0.0.1:1", Stream: "events"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	require.True(t, tr.Redis)
	require.Equal(t, "events", tr.Topic)
	require.NotNil(t, tr.Publisher)
	require.Nil(t, tr.Subscriber)
}

func TestZerologAdapter_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewZerologAdapter(zerolog.New(&buf).Level(zerolog.TraceLevel))

	adapter.With(watermill.LogFields{"topic": "t1"}).Info("subscribed", watermill.LogFields{"n": 1})
	out := buf.String()
	require.Contains(t, out, `"component":"watermill"`)
	require.Contains(t, out, `"topic":"t1"`)
	require.Contains(t, out, `"n":1`)
	require.Contains(t, out, `"message":"subscribed"`)
}

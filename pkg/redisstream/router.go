package redisstream

import (
	"context"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Transport bundles the publisher and subscriber that carry session events.
// Subscriber is nil for the Redis transport: readers of the stream build
// their own consumer-group subscriber with BuildGroupSubscriber.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	// Topic is the stream (or in-process topic) events are published on.
	Topic string
	// Redis reports whether the transport goes through Redis Streams.
	Redis bool

	closers []func() error
}

// Close releases the publisher, the subscriber and the redis client.
func (t *Transport) Close() error {
	var first error
	for i := len(t.closers) - 1; i >= 0; i-- {
		if err := t.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	t.closers = nil
	return first
}

// BuildTransport constructs a publish-only Redis Streams transport when
// enabled. Otherwise it returns an in-process gochannel pub/sub.
func BuildTransport(s Settings) (*Transport, error) {
	s = s.WithDefaults()
	logger := NewZerologAdapter(log.Logger)

	if !s.Enabled {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
		return &Transport{
			Publisher:  ch,
			Subscriber: ch,
			Topic:      s.Stream,
			closers:    []func() error{ch.Close},
		}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: s.Addr})
	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: rstream.DefaultMarshallerUnmarshaller{},
	}, logger)
	if err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "redis stream publisher")
	}

	return &Transport{
		Publisher: pub,
		Topic:     s.Stream,
		Redis:     true,
		closers:   []func() error{client.Close, pub.Close},
	}, nil
}

// BuildGroupSubscriber returns a Redis Streams subscriber bound to the given
// consumer group and name, along with a func closing its client.
func BuildGroupSubscriber(addr, group, consumer string) (message.Subscriber, func() error, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  rstream.DefaultMarshallerUnmarshaller{},
		ConsumerGroup: group,
		Consumer:      consumer,
	}, NewZerologAdapter(log.Logger))
	if err != nil {
		_ = client.Close()
		return nil, func() error { return nil }, errors.Wrap(err, "redis stream subscriber")
	}
	return sub, func() error {
		err := sub.Close()
		if cerr := client.Close(); err == nil {
			err = cerr
		}
		return err
	}, nil
}

// EnsureGroupAtTail creates the consumer group for a given stream at the tail ($) if it doesn't exist.
// This prevents full historical replay on first subscribe.
func EnsureGroupAtTail(ctx context.Context, addr, stream, group string) error {
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = client.Close() }()
	err := client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil {
		// Ignore BUSYGROUP errors (group already exists)
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return errors.Wrapf(err, "create consumer group %s on %s", group, stream)
	}
	log.Info().Str("stream", stream).Str("group", group).Msg("created redis consumer group at $ (tail)")
	return nil
}

package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/damay/pkg/session"
)

const (
	// IdempotencyHeader carries a fresh key per exchange so a server can
	// recognize retried deliveries of the same request.
	IdempotencyHeader = "Idempotency-Key"

	maxErrorBodyBytes = 64 << 10
)

// Client talks to the remote reply service. It implements session.Replier.
type Client struct {
	endpoint    string
	httpClient  *http.Client
	sendHistory bool
	timeout     time.Duration
	headers     http.Header
	logger      zerolog.Logger
}

var _ session.Replier = (*Client)(nil)

type Option func(*Client) error

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client is nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithTimeout bounds a whole exchange. Zero keeps the default of no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d < 0 {
			return errors.Errorf("negative timeout %s", d)
		}
		c.timeout = d
		return nil
	}
}

// WithHistory controls whether the conversation history is sent along with
// the new message.
func WithHistory(send bool) Option {
	return func(c *Client) error {
		c.sendHistory = send
		return nil
	}
}

func WithHeader(key, value string) Option {
	return func(c *Client) error {
		c.headers.Set(key, value)
		return nil
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

func New(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("chat client: endpoint is empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "chat client: parse endpoint")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("chat client: unsupported endpoint scheme %q", u.Scheme)
	}

	c := &Client{
		endpoint:    u.String(),
		httpClient:  &http.Client{},
		sendHistory: true,
		headers:     http.Header{},
		logger:      log.Logger.With().Str("component", "chatclient").Logger(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.Wrap(err, "chat client: apply option")
		}
	}
	return c, nil
}

func (c *Client) Endpoint() string { return c.endpoint }

// Reply posts one message and decodes the answer.
func (c *Client) Reply(ctx context.Context, req session.ReplyRequest) (*session.Reply, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body := RequestBody{Message: req.Message}
	if c.sendHistory {
		body.History = toHistory(req.History)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "encode chat request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build chat request")
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	key := uuid.NewString()
	httpReq.Header.Set(IdempotencyHeader, key)

	logger := c.logger.With().Str("idempotency_key", key).Logger()
	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "post chat request")
	}
	defer func() { _ = resp.Body.Close() }()

	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("chat endpoint responded")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newResponseError(resp)
	}

	out, err := decodeResponse(resp.Body)
	if err != nil {
		return nil, err
	}
	return &session.Reply{
		Text:                 out.Reply,
		RecommendedQuestions: out.RecommendedQuestions,
	}, nil
}

// decodeResponse reads exactly one JSON object. A null body or anything
// after the object is a malformed response.
func decodeResponse(r io.Reader) (*ResponseBody, error) {
	dec := json.NewDecoder(r)
	var out *ResponseBody
	if err := dec.Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode chat response")
	}
	if out == nil {
		return nil, errors.New("decode chat response: body is null")
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, errors.New("decode chat response: unexpected data after response object")
	}
	return out, nil
}

func newResponseError(resp *http.Response) error {
	rerr := &ResponseError{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil || len(raw) == 0 {
		return rerr
	}
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil {
		rerr.ServerMessage = eb.Error
	}
	return rerr
}

func toHistory(msgs []session.Message) []HistoryMessage {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.IsPlaceholder() {
			continue
		}
		out = append(out, HistoryMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

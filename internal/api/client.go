package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// DefaultEndpoint is the hosted prompt API.
	DefaultEndpoint = "https://watch-gpt-api.vercel.app/api/prompt"

	// DefaultReadSize is how many bytes are read from the response body at
	// once.
	DefaultReadSize = 8192

	// DefaultTimeout bounds the wait for response headers. Reading the
	// streamed body is not bounded.
	DefaultTimeout = 30 * time.Second

	contentType = "application/json; charset=utf-8"
)

// PromptRequest is the body of a prompt call.
type PromptRequest struct {
	Prompt string `json:"prompt"`
}

// Config holds configuration for the prompt API client.
type Config struct {
	// Endpoint is the URL the prompt is posted to (defaults to DefaultEndpoint)
	Endpoint string

	// Timeout bounds the wait for response headers (defaults to DefaultTimeout)
	Timeout time.Duration

	// ReadSize is the body read size in bytes (defaults to DefaultReadSize)
	ReadSize int

	// RequestsPerMinute throttles outgoing calls locally; 0 disables it
	RequestsPerMinute int

	// UserAgent is sent with every request when set
	UserAgent string

	// HTTPClient overrides the HTTP client (optional)
	HTTPClient *http.Client

	// Logger overrides the default logger (optional)
	Logger *log.Logger
}

// Client posts prompts to the prompt API and streams the response back.
type Client struct {
	endpoint   string
	timeout    time.Duration
	readSize   int
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewClient creates a new prompt API client.
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}

	u, err := url.Parse(config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%s is not a supported protocol", u.Scheme)
	}

	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.ReadSize <= 0 {
		config.ReadSize = DefaultReadSize
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1)
	}

	return &Client{
		endpoint:   u.String(),
		timeout:    config.Timeout,
		readSize:   config.ReadSize,
		userAgent:  config.UserAgent,
		httpClient: config.HTTPClient,
		limiter:    limiter,
		logger:     config.Logger,
	}, nil
}

// Endpoint returns the URL prompts are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Stream posts prompt and returns the response body as a stream of text
// fragments. A 429 answer yields ErrRateLimited without touching the body;
// any other non-2xx answer yields a *StatusError. There is no retry.
//
// The returned Stream must be closed; closing it aborts the connection.
func (c *Client) Stream(ctx context.Context, prompt string) (*Stream, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for request slot: %w", err)
	}

	body, err := sonic.Marshal(PromptRequest{Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("unable to encode prompt: %w", err)
	}

	requestID := uuid.NewString()
	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("unable to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Request-ID", requestID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debug("posting prompt", "id", requestID, "endpoint", c.endpoint, "length", len(prompt))

	// Only the wait for headers is bounded; the body may stream for longer.
	timedOut := make(chan struct{})
	timer := time.AfterFunc(c.timeout, func() {
		close(timedOut)
		cancel()
	})

	resp, err := c.httpClient.Do(req) //nolint:bodyclose
	if !timer.Stop() {
		<-timedOut
		if err == nil {
			_ = resp.Body.Close()
		}
		cancel()
		return nil, transportError("post", fmt.Errorf("no response after %s: %w", c.timeout, context.DeadlineExceeded))
	}
	if err != nil {
		cancel()
		return nil, transportError("post", err)
	}

	c.logger.Debug("prompt response", "id", requestID, "status", resp.StatusCode)

	if resp.StatusCode == http.StatusTooManyRequests {
		_ = resp.Body.Close()
		cancel()
		c.logger.Warn("prompt API rate limited", "id", requestID)
		return nil, ErrRateLimited
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		cancel()
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode))),
			RequestID:  requestID,
		}
	}

	return newStream(streamCtx, cancel, resp.Body, c.readSize, requestID, c.logger), nil
}

// Callbacks receive the outcome of Send.
type Callbacks struct {
	// OnChunk is called with every decoded fragment, in order
	OnChunk func(chunk string)

	// OnRateLimited is called once when the API answers 429
	OnRateLimited func()
}

// Send posts prompt and reports the response through callbacks. The body is
// read on the calling goroutine; every callback is handed to post, which is
// expected to run it on the goroutine that owns the interface. A nil post
// runs callbacks inline.
//
// A rate limit is reported through OnRateLimited and is not an error. Any
// other failure is returned.
func (c *Client) Send(ctx context.Context, prompt string, cb Callbacks, post func(func())) error {
	if post == nil {
		post = func(f func()) { f() }
	}

	stream, err := c.Stream(ctx, prompt)
	if errors.Is(err, ErrRateLimited) {
		if cb.OnRateLimited != nil {
			post(cb.OnRateLimited)
		}
		return nil
	}
	if err != nil {
		return err
	}
	defer stream.Close() //nolint:errcheck

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if cb.OnChunk != nil {
			post(func() { cb.OnChunk(chunk) })
		}
	}
}

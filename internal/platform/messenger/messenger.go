package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/CrispyBaguette/fb-chat-stt/internal/platform"
)

const defaultGraphBaseURL = "https://graph.facebook.com/v19.0"

// Config contains the Messenger adapter configuration.
type Config struct {
	// PageToken is the page access token used for the Send API and profile
	// lookups.
	PageToken string
	// VerifyToken is the token Messenger echoes back during webhook
	// verification.
	VerifyToken string
	// ListenAddr is the address the webhook server binds to, e.g. ":8080".
	ListenAddr string
	// GraphBaseURL overrides the Graph API endpoint. Empty means the public
	// Graph API; tests point it at a local server.
	GraphBaseURL string
	// Timeout applies to outbound Graph API calls.
	Timeout time.Duration
}

// Client talks to the Messenger Platform. It implements platform.Client.
type Client struct {
	config     Config
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string

	events chan platform.Message
	done   chan struct{}

	mu      sync.Mutex
	server  *http.Server
	addr    string
	stopped bool
}

// NewClient creates a Messenger client. It does not start listening.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.PageToken == "" {
		return nil, fmt.Errorf("page token cannot be empty")
	}
	if cfg.VerifyToken == "" {
		return nil, fmt.Errorf("verify token cannot be empty")
	}
	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("listen address cannot be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	baseURL := cfg.GraphBaseURL
	if baseURL == "" {
		baseURL = defaultGraphBaseURL
	}

	return &Client{
		config:     cfg,
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    baseURL,
		events:     make(chan platform.Message, 64),
		done:       make(chan struct{}),
	}, nil
}

// webhookEnvelope is the page-subscription payload delivered by Messenger.
type webhookEnvelope struct {
	Object string `json:"object"`
	Entry  []struct {
		Messaging []webhookMessaging `json:"messaging"`
	} `json:"entry"`
}

type webhookMessaging struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Timestamp int64 `json:"timestamp"`
	Message   struct {
		Text        string `json:"text"`
		Attachments []struct {
			Type    string `json:"type"`
			Payload struct {
				URL string `json:"url"`
			} `json:"payload"`
		} `json:"attachments"`
	} `json:"message"`
}

// Listen starts the webhook server and invokes handler for each incoming
// message, one at a time in arrival order. It blocks until Stop is called
// or the context is cancelled.
func (c *Client) Listen(ctx context.Context, handler platform.Handler) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", c.handleWebhook)

	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", c.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("webhook server listen failed: %w", err)
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		ln.Close()
		return fmt.Errorf("client already stopped")
	}
	c.server = srv
	c.addr = ln.Addr().String()
	c.mu.Unlock()

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	c.logger.Info("Webhook server listening", slog.String("addr", c.Addr()))

	// The events channel is never closed: Shutdown lets in-flight handlers
	// finish, and they may still try to enqueue. Stop signals via done.
	for {
		select {
		case msg := <-c.events:
			handler(ctx, msg)
		case err := <-serveErr:
			return fmt.Errorf("webhook server failed: %w", err)
		case <-c.done:
			return nil
		case <-ctx.Done():
			_ = c.Stop()
			return ctx.Err()
		}
	}
}

// Addr reports the webhook server's bound address, empty before Listen.
func (c *Client) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// Stop shuts the webhook server down and makes Listen return.
func (c *Client) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	srv := c.server
	c.mu.Unlock()

	close(c.done)
	if srv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("webhook server shutdown: %w", err)
	}
	return nil
}

func (c *Client) handleWebhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		c.handleVerification(w, r)
	case http.MethodPost:
		c.handleEvent(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleVerification answers the subscription handshake: Messenger sends
// hub.verify_token and expects hub.challenge echoed back.
func (c *Client) handleVerification(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != c.config.VerifyToken {
		c.logger.Warn("Webhook verification rejected",
			slog.String("mode", q.Get("hub.mode")),
		)
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}
	fmt.Fprint(w, q.Get("hub.challenge"))
}

func (c *Client) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read failed", http.StatusBadRequest)
		return
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.logger.Warn("Failed to parse webhook payload", slog.String("error", err.Error()))
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	// Ack immediately; Messenger retries deliveries that do not return 200
	// quickly. Events are queued for the Listen loop.
	w.WriteHeader(http.StatusOK)

	if envelope.Object != "page" {
		return
	}

	// In-flight handlers can outlive Stop; drop their events rather than
	// enqueue into a loop that is no longer draining.
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped {
		return
	}

	for _, entry := range envelope.Entry {
		for _, m := range entry.Messaging {
			msg := toMessage(m)
			if msg.AuthorID == "" {
				continue
			}
			select {
			case c.events <- msg:
			default:
				c.logger.Warn("Event queue full, dropping message",
					slog.String("author_id", msg.AuthorID),
				)
			}
		}
	}
}

// toMessage maps a webhook messaging entry onto the platform event type.
// Webhook conversations are per-user, so the thread is the sender.
func toMessage(m webhookMessaging) platform.Message {
	msg := platform.Message{
		AuthorID:   m.Sender.ID,
		ThreadID:   m.Sender.ID,
		ThreadKind: platform.ThreadUser,
		Timestamp:  m.Timestamp,
		Text:       m.Message.Text,
	}
	for _, a := range m.Message.Attachments {
		kind := platform.AttachmentOther
		if a.Type == "audio" {
			kind = platform.AttachmentVoice
		}
		msg.Attachments = append(msg.Attachments, platform.Attachment{
			Kind: kind,
			URL:  a.Payload.URL,
		})
	}
	return msg
}

type sendRequest struct {
	MessagingType string `json:"messaging_type"`
	Recipient     struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
}

// Send posts a text reply to a thread through the Send API.
func (c *Client) Send(ctx context.Context, text, threadID string, kind platform.ThreadKind) error {
	var req sendRequest
	req.MessagingType = "RESPONSE"
	req.Recipient.ID = threadID
	req.Message.Text = text

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode send request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/me/messages?access_token=%s",
		c.baseURL, url.QueryEscape(c.config.PageToken))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create send request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("send API error %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

type profileResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FetchUserInfo reads a user profile from the Graph API. Messenger exposes
// no nickname for page-scoped IDs, so Nickname is always empty here.
func (c *Client) FetchUserInfo(ctx context.Context, userID string) (platform.UserProfile, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=first_name,last_name&access_token=%s",
		c.baseURL, url.PathEscape(userID), url.QueryEscape(c.config.PageToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return platform.UserProfile{}, fmt.Errorf("failed to create profile request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return platform.UserProfile{}, fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return platform.UserProfile{}, fmt.Errorf("profile API error %d: %s", resp.StatusCode, string(respBody))
	}

	var profile profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return platform.UserProfile{}, fmt.Errorf("failed to parse profile response: %w", err)
	}

	return platform.UserProfile{
		ID:        profile.ID,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
	}, nil
}

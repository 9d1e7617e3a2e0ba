// Package rest is the one-shot HTTP side of the bot: gateway URL lookup,
// message posting, interaction callbacks. The gateway session never calls it
// directly; event handlers do.
package rest

import (
	"errors"
	"fmt"
	"log/slog"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
)

const defaultBaseURL = "https://discord.com/api/v10"

// ErrAuthenticationFailed means the API rejected the bot token.
var ErrAuthenticationFailed = errors.New("rest: authentication failed, check the bot token")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client talks to the platform's REST API with bot authorization.
type Client struct {
	http      *fasthttp.Client
	baseURL   string
	token     string
	userAgent string
}

type ClientOpt func(c *Client)

func WithBaseURL(url string) ClientOpt {
	return func(c *Client) { c.baseURL = url }
}

func WithHTTPClient(httpClient *fasthttp.Client) ClientOpt {
	return func(c *Client) { c.http = httpClient }
}

func NewClient(token string, opts ...ClientOpt) *Client {
	c := &Client{
		http:      &fasthttp.Client{},
		baseURL:   defaultBaseURL,
		token:     token,
		userAgent: "pedantic (gateway, v10)",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(method, path string, body []byte) (int, []byte, error) {
	request := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(request)
	response := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(response)

	request.Header.SetMethod(method)
	request.SetRequestURI(c.baseURL + path)
	request.Header.Set("Authorization", "Bot "+c.token)
	request.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
		request.SetBody(body)
	}

	if err := c.http.Do(request, response); err != nil {
		return 0, nil, fmt.Errorf("rest: %s %s: %w", method, path, err)
	}

	status := response.StatusCode()
	out := append([]byte(nil), response.Body()...)

	if status == fasthttp.StatusUnauthorized || status == fasthttp.StatusForbidden {
		return status, out, fmt.Errorf("%w: status %d", ErrAuthenticationFailed, status)
	}
	if status >= 400 {
		slog.Warn("rest call failed", "method", method, "path", path, "status", status, "body", string(out))
		return status, out, fmt.Errorf("rest: %s %s: status %d", method, path, status)
	}
	return status, out, nil
}

// GatewayURL asks the API where the gateway lives. Called once at startup.
func (c *Client) GatewayURL() (string, error) {
	_, body, err := c.do(fasthttp.MethodGet, "/gateway/bot", nil)
	if err != nil {
		return "", err
	}
	var payload struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("rest: decode gateway url: %w", err)
	}
	if payload.URL == "" {
		return "", errors.New("rest: gateway lookup returned no url")
	}
	return payload.URL, nil
}

// MessageOpt customizes an outbound message.
type MessageOpt func(payload map[string]any)

// AsReplyTo marks the message as a reply to messageID.
func AsReplyTo(messageID string) MessageOpt {
	return func(payload map[string]any) {
		payload["message_reference"] = map[string]string{"message_id": messageID}
	}
}

// Button is one clickable component under a message.
type Button struct {
	Type     int    `json:"type"`
	Style    int    `json:"style"`
	Label    string `json:"label"`
	CustomID string `json:"custom_id"`
}

// NewButton returns a secondary-style button carrying customID back on click.
func NewButton(label, customID string) Button {
	return Button{Type: 2, Style: 2, Label: label, CustomID: customID}
}

// WithButtons attaches a single action row holding the given buttons.
func WithButtons(buttons ...Button) MessageOpt {
	return func(payload map[string]any) {
		payload["components"] = []map[string]any{
			{"type": 1, "components": buttons},
		}
	}
}

// PostMessage sends a message to a channel.
func (c *Client) PostMessage(channelID, content string, opts ...MessageOpt) error {
	payload := map[string]any{"content": content}
	for _, opt := range opts {
		opt(payload)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("rest: encode message: %w", err)
	}
	_, _, err = c.do(fasthttp.MethodPost, "/channels/"+channelID+"/messages", body)
	return err
}

// DeleteMessage removes a message from a channel's history.
func (c *Client) DeleteMessage(channelID, messageID string) error {
	_, _, err := c.do(fasthttp.MethodDelete, "/channels/"+channelID+"/messages/"+messageID, nil)
	return err
}

// Interaction response types. See the interactions API reference.
const (
	interactionPong        = 1
	interactionChannelText = 4
)

func (c *Client) respondInteraction(id, token string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("rest: encode interaction response: %w", err)
	}
	_, _, err = c.do(fasthttp.MethodPost, "/interactions/"+id+"/"+token+"/callback", body)
	return err
}

// AckInteraction answers an interaction with a pong, a defined no-op.
func (c *Client) AckInteraction(id, token string) error {
	return c.respondInteraction(id, token, map[string]any{"type": interactionPong})
}

// RespondInteractionText answers an interaction with a plain text message.
func (c *Client) RespondInteractionText(id, token, content string) error {
	return c.respondInteraction(id, token, map[string]any{
		"type": interactionChannelText,
		"data": map[string]string{"content": content},
	})
}

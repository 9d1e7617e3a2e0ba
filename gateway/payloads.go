package gateway

import "encoding/json"

// Event is one decoded inbound gateway frame. Sequence and Type are only
// populated for dispatch frames.
type Event struct {
	Operation int             `json:"op"`
	Sequence  int64           `json:"s"`
	Type      string          `json:"t"`
	RawData   json.RawMessage `json:"d"`
}

type helloData struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

type heartbeatPayload struct {
	Op   int   `json:"op"`
	Data int64 `json:"d"`
}

// Identify carries the handshake credentials and connection properties.
type Identify struct {
	Token      string `json:"token"`
	Intents    int    `json:"intents"`
	Properties struct {
		OS      string `json:"os"`
		Browser string `json:"browser"`
		Device  string `json:"device"`
	} `json:"properties"`
	Compress bool `json:"compress"`
}

type identifyPayload struct {
	Op   int      `json:"op"`
	Data Identify `json:"d"`
}

type resumePayload struct {
	Op   int `json:"op"`
	Data struct {
		Token     string `json:"token"`
		SessionID string `json:"session_id"`
		Sequence  int64  `json:"seq"`
	} `json:"d"`
}

// Ready is the payload of the READY dispatch event that completes identify.
type Ready struct {
	User             User   `json:"user"`
	SessionID        string `json:"session_id"`
	ResumeGatewayURL string `json:"resume_gateway_url"`
}

// User is the subset of the user object the bot needs.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Bot           bool   `json:"bot"`
}

// MessageCreate is the payload of the MESSAGE_CREATE dispatch event.
type MessageCreate struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
	Content   string `json:"content"`
	Author    User   `json:"author"`
}

// InteractionCreate is the payload of the INTERACTION_CREATE dispatch event.
type InteractionCreate struct {
	ID    string `json:"id"`
	Token string `json:"token"`
	Data  struct {
		CustomID string `json:"custom_id"`
	} `json:"data"`
	Message struct {
		ID        string `json:"id"`
		ChannelID string `json:"channel_id"`
	} `json:"message"`
}

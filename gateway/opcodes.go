package gateway

// Gateway opcodes, v10.
const (
	OpDispatch       = 0
	OpHeartbeat      = 1
	OpIdentify       = 2
	OpResume         = 6
	OpReconnect      = 7
	OpInvalidSession = 9
	OpHello          = 10
	OpHeartbeatAck   = 11
)

// Close codes the server may send when tearing down the socket.
const (
	CloseUnknownError         = 4000
	CloseUnknownOpcode        = 4001
	CloseDecodeError          = 4002
	CloseNotAuthenticated     = 4003
	CloseAuthenticationFailed = 4004
	CloseAlreadyAuthenticated = 4005
	CloseInvalidSeq           = 4007
	CloseRateLimited          = 4008
	CloseSessionTimedOut      = 4009
	CloseInvalidShard         = 4010
	CloseShardingRequired     = 4011
	CloseInvalidAPIVersion    = 4012
	CloseInvalidIntents       = 4013
	CloseDisallowedIntents    = 4014
)

// Intent bit flags sent with identify.
const (
	IntentGuilds               = 1 << 0
	IntentGuildMembers         = 1 << 1
	IntentGuildMessages        = 1 << 9
	IntentGuildMessageTyping   = 1 << 11
	IntentDirectMessages       = 1 << 12
	IntentDirectMessageTyping  = 1 << 14
	IntentMessageContent       = 1 << 15
	IntentAutoModerationConfig = 1 << 20
)

// Dispatch event names this bot cares about. Any other name is routed
// through the dispatcher as-is and ignored if nothing registered for it.
const (
	EventReady             = "READY"
	EventResumed           = "RESUMED"
	EventMessageCreate     = "MESSAGE_CREATE"
	EventInteractionCreate = "INTERACTION_CREATE"
)

const gatewayVersion = "10"

// defaultResumableCloseCodes is the close-code policy applied when the
// session is not configured with its own. 4004 is never resumable, it is an
// authentication failure. 4010+ are configuration mistakes a resume cannot
// fix either.
var defaultResumableCloseCodes = map[int]bool{
	CloseUnknownError:         true,
	CloseUnknownOpcode:        true,
	CloseDecodeError:          true,
	CloseNotAuthenticated:     true,
	CloseAlreadyAuthenticated: true,
	CloseInvalidSeq:           true,
	CloseRateLimited:          true,
	CloseSessionTimedOut:      true,
}

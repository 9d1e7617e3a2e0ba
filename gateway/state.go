package gateway

// State is the connection lifecycle position of a Session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingHello
	StateIdentifying
	StateReady
	StateResuming
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingHello:
		return "awaiting-hello"
	case StateIdentifying:
		return "identifying"
	case StateReady:
		return "ready"
	case StateResuming:
		return "resuming"
	case StateClosing:
		return "closing"
	}
	return "unknown"
}

// Input is an occurrence that may move the session between states. Inputs
// are produced by the read loop, the heartbeat monitor, and the shutdown
// path; the table below is the only place transitions are defined, so the
// lifecycle can be tested without a socket or a clock.
type Input int

const (
	// InputConnect fires on start and whenever a backoff delay elapses.
	InputConnect Input = iota
	// InputTransportUp fires when the dial completes.
	InputTransportUp
	// InputHello fires on the hello control frame.
	InputHello
	// InputEstablished fires on READY (after identify) or RESUMED.
	InputEstablished
	// InputResumeRejected fires on a non-resumable invalid-session signal.
	InputResumeRejected
	// InputReconnect fires on the server's reconnect request, on heartbeat
	// staleness, and on a transport drop classified as resumable while a
	// session id is held.
	InputReconnect
	// InputTransportLost fires on any transport failure with no resumable
	// session to return to.
	InputTransportLost
	// InputShutdown fires on an explicit close request.
	InputShutdown
	// InputClosed fires once shutdown finished retiring the transport.
	InputClosed
)

var transitions = map[State]map[Input]State{
	StateDisconnected: {
		InputConnect:  StateConnecting,
		InputShutdown: StateClosing,
	},
	StateConnecting: {
		InputTransportUp:   StateAwaitingHello,
		InputTransportLost: StateDisconnected,
		InputShutdown:      StateClosing,
	},
	StateAwaitingHello: {
		InputHello:         StateIdentifying,
		InputTransportLost: StateDisconnected,
		InputShutdown:      StateClosing,
	},
	StateIdentifying: {
		InputEstablished:    StateReady,
		InputResumeRejected: StateIdentifying,
		InputTransportLost:  StateDisconnected,
		InputReconnect:      StateResuming,
		InputShutdown:       StateClosing,
	},
	StateReady: {
		InputReconnect:      StateResuming,
		InputResumeRejected: StateIdentifying,
		InputTransportLost:  StateDisconnected,
		InputShutdown:       StateClosing,
	},
	StateResuming: {
		InputEstablished:    StateReady,
		InputResumeRejected: StateIdentifying,
		InputTransportLost:  StateDisconnected,
		InputReconnect:      StateResuming,
		InputShutdown:       StateClosing,
	},
	StateClosing: {
		InputClosed: StateDisconnected,
	},
}

// Next returns the state reached from s on in. The second return is false
// when the table defines no such transition, in which case the caller must
// stay where it is.
func Next(s State, in Input) (State, bool) {
	next, ok := transitions[s][in]
	return next, ok
}

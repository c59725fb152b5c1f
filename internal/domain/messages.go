package domain

import "time"

// server -> client message types
const (
	MsgSessionJoined      = "session_joined"
	MsgPlayerReady        = "player_ready"
	MsgReadyAck           = "ready_ack"
	MsgGameStarted        = "game_started"
	MsgMoveMade           = "move_made"
	MsgMoveAck            = "move_ack"
	MsgTurnTimeout        = "turn_timeout"
	MsgBoardSnapshot      = "board_snapshot"
	MsgGameCompleted      = "game_completed"
	MsgPostGamePrompt     = "post_game_prompt"
	MsgPostGameUpdate     = "post_game_update"
	MsgDecisionAck        = "decision_ack"
	MsgRematchStarted     = "rematch_started"
	MsgSessionTerminated  = "session_terminated"
	MsgPlayerDisconnected = "player_disconnected"
	MsgError              = "error"

	MsgQueueJoined  = "queue_joined"
	MsgQueueLeft    = "queue_left"
	MsgQueueTimeout = "queue_timeout"
)

// client -> server message types
const (
	ClientInit         = "init"
	ClientFindMatch    = "find_match"
	ClientCancelSearch = "cancel_search"
	ClientReady        = "ready"
	ClientMove         = "move"
	ClientDecision     = "decision"
)

type ClientMessage struct {
	Type      string `json:"type"`
	JWT       string `json:"jwt,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Decision  string `json:"decision,omitempty"`
	Sizes     []int  `json:"sizes,omitempty"`
	Rules     string `json:"rules,omitempty"`
}

type ServerMessage struct {
	Type          string             `json:"type"`
	RequestID     string             `json:"requestId,omitempty"`
	Error         ErrorKind          `json:"error,omitempty"`
	Message       string             `json:"message,omitempty"`
	SessionID     string             `json:"sessionId,omitempty"`
	Participants  []int64            `json:"participants,omitempty"`
	UserID        int64              `json:"userId,omitempty"`
	Rules         string             `json:"rules,omitempty"`
	CurrentPlayer int64              `json:"currentPlayer,omitempty"`
	TurnNumber    uint64             `json:"turnNumber,omitempty"`
	Round         int                `json:"round,omitempty"`
	X             *int               `json:"x,omitempty"`
	Y             *int               `json:"y,omitempty"`
	Stone         Stone              `json:"stone,omitempty"`
	Board         [][]int            `json:"board,omitempty"`
	Outcomes      map[int64]Outcome  `json:"outcomes,omitempty"`
	Decisions     map[int64]Decision `json:"decisions,omitempty"`
	Deadline      *time.Time         `json:"deadline,omitempty"`
	NextSessionID string             `json:"nextSessionId,omitempty"`
	Reason        string             `json:"reason,omitempty"`
}

// ErrorResponse builds the generic error response sent to a single requester.
func ErrorResponse(kind ErrorKind, requestID string) ServerMessage {
	return ServerMessage{Type: MsgError, Error: kind, RequestID: requestID}
}

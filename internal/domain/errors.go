package domain

// ErrorKind is the structured error carried back to a client in an error
// response. It satisfies error so callers can still log it directly.
type ErrorKind string

func (e ErrorKind) Error() string {
	return string(e)
}

const (
	ErrNone             ErrorKind = ""
	ErrInvalidPlayer    ErrorKind = "INVALID_PLAYER"
	ErrGameNotStarted   ErrorKind = "GAME_NOT_STARTED"
	ErrOutOfTurn        ErrorKind = "OUT_OF_TURN"
	ErrOutOfBounds      ErrorKind = "OUT_OF_BOUNDS"
	ErrCellOccupied     ErrorKind = "CELL_OCCUPIED"
	ErrGameFinished     ErrorKind = "GAME_FINISHED"
	ErrRestrictedZone   ErrorKind = "RESTRICTED_ZONE"
	ErrSessionNotFound  ErrorKind = "SESSION_NOT_FOUND"
	ErrSessionClosed    ErrorKind = "SESSION_CLOSED"
	ErrAlreadyDecided   ErrorKind = "ALREADY_DECIDED"
	ErrTimeWindowClosed ErrorKind = "TIME_WINDOW_CLOSED"
	ErrInvalidPayload   ErrorKind = "INVALID_PAYLOAD"
	ErrUnauthorized     ErrorKind = "UNAUTHORIZED"
	ErrAlreadyQueued    ErrorKind = "ALREADY_QUEUED"
)

package uid

import (
	"github.com/google/uuid"
)

// GenerateSessionID returns a new game session identifier.
func GenerateSessionID() string {
	return uuid.NewString()
}

// GenerateTicketID returns a new matchmaking ticket identifier.
func GenerateTicketID() string {
	return "tkt_" + uuid.NewString()
}

package websocket

import (
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rotisserie/eris"

	"github.com/iamasit07/stones/backend/internal/domain"
)

const writeWait = 10 * time.Second

// ConnectionManager handles active WebSocket connections thread-safely. It is
// the Messenger for sessions and the Notifier for the matchmaking queue.
type ConnectionManager struct {
	connections map[int64]*websocket.Conn

	// conn writes are not concurrency safe, so every user gets its own lock
	writeMu map[int64]*sync.Mutex

	mu sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[int64]*websocket.Conn),
		writeMu:     make(map[int64]*sync.Mutex),
	}
}

// AddConnection registers conn for the user, closing any previous one.
func (cm *ConnectionManager) AddConnection(userID int64, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if old, exists := cm.connections[userID]; exists && old != conn {
		old.Close()
	}
	cm.connections[userID] = conn
	cm.writeMu[userID] = &sync.Mutex{}
}

// RemoveConnectionIfMatching drops the user's connection only if it is still
// conn, so cleanup of a replaced socket cannot close its successor. It
// reports whether conn was current.
func (cm *ConnectionManager) RemoveConnectionIfMatching(userID int64, conn *websocket.Conn) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	current, exists := cm.connections[userID]
	if !exists || current != conn {
		return false
	}
	current.Close()
	delete(cm.connections, userID)
	delete(cm.writeMu, userID)
	return true
}

func (cm *ConnectionManager) IsCurrentConnection(userID int64, conn *websocket.Conn) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	current, exists := cm.connections[userID]
	return exists && current == conn
}

func (cm *ConnectionManager) IsConnected(userID int64) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	_, exists := cm.connections[userID]
	return exists
}

func (cm *ConnectionManager) Len() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// SendMessage writes msg to the user's socket. Messages to users without a
// connection are dropped silently.
func (cm *ConnectionManager) SendMessage(userID int64, msg domain.ServerMessage) error {
	cm.mu.RLock()
	conn, exists := cm.connections[userID]
	mu := cm.writeMu[userID]
	cm.mu.RUnlock()

	if !exists || mu == nil {
		return nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return eris.Wrapf(err, "failed to encode %s", msg.Type)
	}

	mu.Lock()
	defer mu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return eris.Wrapf(err, "failed to write %s to user %d", msg.Type, userID)
	}
	return nil
}

// CloseAll closes every socket, e.g. on shutdown.
func (cm *ConnectionManager) CloseAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for id, conn := range cm.connections {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		delete(cm.connections, id)
		delete(cm.writeMu, id)
	}
}

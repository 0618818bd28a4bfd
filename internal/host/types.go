package host

import "github.com/mirren/bunnymo-bridge-go/internal/domain"

// Lorebook is the host's listing record for one world-info book.
type Lorebook struct {
	Name    string `json:"name"`
	Entries int    `json:"entries,omitempty"`
}

type lorebookResponse struct {
	Name    string                 `json:"name"`
	Entries []domain.LorebookEntry `json:"entries"`
}

// InjectRequest asks the host to insert ephemeral text into the AI context
// for the next generation only.
type InjectRequest struct {
	Text      string `json:"text"`
	Role      string `json:"role"`
	Depth     int    `json:"depth"`
	Ephemeral bool   `json:"ephemeral"`
}

type cardsRequest struct {
	Header     string             `json:"header,omitempty"`
	Characters []domain.Character `json:"characters"`
}

// Event is the envelope the host pushes over the websocket.
type Event struct {
	Type    string              `json:"type"`
	Message *domain.ChatMessage `json:"message,omitempty"`
}

const (
	EventTypeMessage = "message"
)

type WebSocketState string

const (
	WSStateConnecting   WebSocketState = "CONNECTING"
	WSStateConnected    WebSocketState = "CONNECTED"
	WSStateDisconnected WebSocketState = "DISCONNECTED"
	WSStateReconnecting WebSocketState = "RECONNECTING"
	WSStateFailed       WebSocketState = "FAILED"
)

func (s WebSocketState) String() string {
	return string(s)
}

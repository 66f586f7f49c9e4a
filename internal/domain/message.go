package domain

import "time"

// Connection attribute defaults applied when the handshake path omits them.
const (
	DefaultScope    = "public"
	DefaultChannel  = "global"
	DefaultUsername = "user"
)

// ChatMessage is a persisted chat message. Its JSON form is the wire form
// used for both live broadcast and history.
type ChatMessage struct {
	ID         int64     `json:"id"`
	Scope      string    `json:"scope"`
	Channel    string    `json:"channel"`
	FromUserID *int64    `json:"fromUserId"`
	Username   string    `json:"username"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// RoomKey returns the room the message belongs to.
func (m *ChatMessage) RoomKey() string {
	return RoomKey(m.Scope, m.Channel)
}

// RoomKey joins scope and channel into the registry key of a room.
func RoomKey(scope, channel string) string {
	return scope + ":" + channel
}

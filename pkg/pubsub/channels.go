package pubsub

import (
	"fmt"
	"strings"
)

// PatternChatRoom matches every chat room channel.
const PatternChatRoom = "chat:room:*"

// Event types.
const (
	EventChatMessage       = "chat_message"
	EventLeaderboardUpdate = "leaderboard_update"
)

// splitChannel splits "{prefix}:room:{rest}" into its prefix and the
// remainder. The remainder may itself contain ':'.
func splitChannel(channel string) (prefix, rest string, err error) {
	parts := strings.SplitN(channel, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] != "room" || parts[2] == "" {
		return "", "", fmt.Errorf("invalid channel format: %s", channel)
	}
	return parts[0], parts[2], nil
}

// RoomChannel returns the channel for a hub room key such as "public:global".
func RoomChannel(roomKey string) string {
	return "chat:room:" + roomKey
}

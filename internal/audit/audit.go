package audit

import (
	"context"

	"github.com/weiawesome/cycredit-chat/pkg/log"
)

const (
	ActionConnect      = "chat.connect"
	ActionSendMessage  = "chat.send_message"
	ActionDisconnect   = "chat.disconnect"
	ActionScoreUpdate  = "leaderboard.score_update"
	ActionBoardConnect = "leaderboard.connect"
)

const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit entry for a connection in a room.
func Log(ctx context.Context, action, connID, room, username, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldConnID, connID).
		Str(log.FieldRoom, room).
		Str(log.FieldUsername, username).
		Msg(msg)
}

// LogScore emits an audit entry for a leaderboard change.
func LogScore(ctx context.Context, userID string, score int, detail string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, ActionScoreUpdate).
		Str(log.FieldUserID, userID).
		Int("score", score).
		Str(FieldDetail, detail).
		Msg("leaderboard score updated")
}

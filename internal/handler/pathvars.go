package handler

import (
	"strings"

	"github.com/weiawesome/cycredit-chat/internal/domain"
)

// ExtractPathVars reads scope, channel and username from a handshake path of
// the form /ws/chat/{scope}/{channel}/{username}. Shorter paths yield empty
// attributes. Interior empty segments are taken as-is, so "/ws/chat//g/u"
// has scope "".
func ExtractPathVars(path string) domain.Attributes {
	parts := strings.Split(path, "/")
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}

	var attrs domain.Attributes
	if len(parts) < 6 {
		return attrs
	}

	attrs.Scope = domain.Some(parts[3])
	attrs.Channel = domain.Some(parts[4])
	attrs.Username = domain.Some(parts[5])
	return attrs
}

package handler

import (
	"testing"

	"github.com/weiawesome/cycredit-chat/internal/domain"
)

func TestExtractPathVars(t *testing.T) {
	tests := []struct {
		name string
		path string
		want domain.Resolved
	}{
		{"full path", "/ws/chat/public/global/alice", domain.Resolved{Scope: "public", Channel: "global", Username: "alice"}},
		{"trailing slash", "/ws/chat/guild/g1/bob/", domain.Resolved{Scope: "guild", Channel: "g1", Username: "bob"}},
		{"extra segments ignored", "/ws/chat/dm/1-2/carol/extra", domain.Resolved{Scope: "dm", Channel: "1-2", Username: "carol"}},
		{"too short", "/ws/chat/public/global", domain.Resolved{Scope: "public", Channel: "global", Username: "user"}},
		{"bare prefix", "/ws/chat", domain.Resolved{Scope: "public", Channel: "global", Username: "user"}},
		{"empty segment", "/ws/chat//global/dave", domain.Resolved{Scope: "", Channel: "global", Username: "dave"}},
		{"empty channel", "/ws/chat/public//erin", domain.Resolved{Scope: "public", Channel: "", Username: "erin"}},
		{"decoded characters kept", "/ws/chat/public/global/a b", domain.Resolved{Scope: "public", Channel: "global", Username: "a b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractPathVars(tt.path).Resolve(); got != tt.want {
				t.Errorf("ExtractPathVars(%q) = %+v, want %+v", tt.path, got, tt.want)
			}
		})
	}
}

func TestExtractPathVarsLeavesShortPathsUnset(t *testing.T) {
	attrs := ExtractPathVars("/ws/chat/public/global")
	if attrs.Scope.Set || attrs.Channel.Set || attrs.Username.Set {
		t.Errorf("short path produced attributes: %+v", attrs)
	}
}

func TestExtractPathVarsKeepsEmptySegment(t *testing.T) {
	attrs := ExtractPathVars("/ws/chat//global/dave")
	if !attrs.Scope.Set || attrs.Scope.Value != "" {
		t.Fatalf("scope = %+v, want set and empty", attrs.Scope)
	}
	if got := attrs.Resolve().RoomKey(); got != ":global" {
		t.Errorf("room = %q, want %q", got, ":global")
	}
}

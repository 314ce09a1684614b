package messaging

import (
	"bytes"
	"encoding/json"
	"strings"
)

// The backend joins nested relations in more than one shape depending on the
// query path: a bare object, a single-element array, or an object wrapped
// under a "profile"/"profiles" key. All call sites go through these accessors
// instead of re-deriving the shape locally.

// NormalizeProfile resolves a joined profile relation from its raw JSON form.
//
// Precedence order (fixed, first match wins):
//  1. a bare profile object
//  2. the first element of a non-empty array
//  3. the value under a "profile" key, then a "profiles" key, normalized once
//
// It returns false for null, empty arrays, and shapes carrying no id.
func NormalizeProfile(raw json.RawMessage) (Profile, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Profile{}, false
	}

	switch trimmed[0] {
	case '{':
		var p Profile
		if err := json.Unmarshal(trimmed, &p); err == nil && p.ID != "" {
			return p, true
		}
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return Profile{}, false
		}
		for _, key := range []string{"profile", "profiles"} {
			if inner, ok := wrapper[key]; ok {
				if p, ok := NormalizeProfile(inner); ok {
					return p, true
				}
			}
		}
		return Profile{}, false
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil || len(items) == 0 {
			return Profile{}, false
		}
		return NormalizeProfile(items[0])
	default:
		return Profile{}, false
	}
}

// NormalizeConversationID extracts the canonical conversation id from a
// create-or-get response. The backend primitive answers in one of two shapes:
// a bare identifier, or a wrapper object carrying it.
//
// Precedence order (fixed, first match wins):
//  1. a bare JSON string
//  2. the "conversation_id" key of an object
//  3. the "id" key of an object
func NormalizeConversationID(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false
	}

	var bare string
	if err := json.Unmarshal(trimmed, &bare); err == nil {
		bare = strings.TrimSpace(bare)
		return bare, bare != ""
	}

	var wrapper struct {
		ConversationID string `json:"conversation_id"`
		ID             string `json:"id"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return "", false
	}
	if id := strings.TrimSpace(wrapper.ConversationID); id != "" {
		return id, true
	}
	if id := strings.TrimSpace(wrapper.ID); id != "" {
		return id, true
	}
	return "", false
}

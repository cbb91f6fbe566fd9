package transport

import (
	"encoding/json"
	"strings"
)

// ExtractMessage pulls a human-readable message out of an error response
// body. Remote services disagree on the shape; the recognised forms are:
//
//	{"detail": "msg"}
//	{"detail": {"message": "msg"}}
//	{"detail": [{"msg": "msg"}, ...]}
//	{"message": "msg"}
//	{"error": "msg"} or {"error": {"message": "msg"}}
//	"msg"
//
// structured is false when the body is empty or not one of these forms.
func ExtractMessage(body []byte) (msg string, structured bool) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", false
	}

	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return "", false
	}
	msg = messageFrom(v)
	return msg, msg != ""
}

func messageFrom(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		var parts []string
		for _, item := range t {
			if m := messageFrom(item); m != "" {
				parts = append(parts, m)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		for _, key := range []string{"detail", "message", "msg", "error"} {
			if inner, ok := t[key]; ok {
				if m := messageFrom(inner); m != "" {
					return m
				}
			}
		}
	}
	return ""
}

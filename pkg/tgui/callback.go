package tgui

import (
	"strings"
)

// Data formats inline callback data as "prefix:action[:payload]".
// Payload is kept as-is (no escaping).
func Data(prefix, action, payload string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	action = strings.TrimSpace(action)
	s := prefix + ":" + action
	if payload != "" {
		s += ":" + payload
	}
	if len(s) > MaxCallbackDataLen {
		return "", ErrCallbackDataTooLong
	}
	return s, nil
}

// ParseData splits callback data built by Data. The payload may itself
// contain ':'.
func ParseData(data string) (prefix, action, payload string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(data), ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", false
	}
	if len(parts) == 3 {
		payload = parts[2]
	}
	return parts[0], parts[1], payload, true
}

package internal

import (
	"encoding/base64"
	"encoding/json"
)

// MakeTestToken builds an unsigned JWT carrying the given claims. The
// client never verifies signatures, so a fixed fake signature is enough
// for tests.
func MakeTestToken(claims map[string]interface{}) string {
	header, _ := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	payload, _ := json.Marshal(claims)
	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + ".c2lnbmF0dXJl"
}

// CreateTestMessages builds a simple alternating conversation
func CreateTestMessages(pairs ...string) []Message {
	msgs := make([]Message, 0, len(pairs))
	for i, content := range pairs {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		msgs = append(msgs, Message{Role: role, Content: content})
	}
	return msgs
}

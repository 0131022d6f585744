package idgen

import (
	"crypto/rand"
	"fmt"
)

// Lowercase alphanumerics only, so generated ids survive case-insensitive
// routing and copy/paste from URLs.
const charset = "0123456789abcdefghijklmnopqrstuvwxyz"

// ConversationIDLength matches the default nanoid size used for
// conversation ids.
const ConversationIDLength = 21

// MessageIDLength is the size used for message ids embedded in chat payloads.
const MessageIDLength = 10

// GenerateCaseInsensitiveID generates an unprefixed lowercase alphanumeric id.
func GenerateCaseInsensitiveID(length int) (string, error) {
	return randomString(length)
}

func randomString(length int) (string, error) {
	bytes := make([]byte, length*2)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := make([]byte, length)
	for i := 0; i < length; i++ {
		encoded[i] = charset[bytes[i]%36] // 36 = len(charset)
	}
	return string(encoded), nil
}

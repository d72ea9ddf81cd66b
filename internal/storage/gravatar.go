package storage

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// GravatarURL derives the default avatar for an email address. Used at
// registration so every account starts with a non-empty avatar.
func GravatarURL(email string, size int) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	hash := md5.Sum([]byte(normalized))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%x?s=%d&d=identicon", hash, size)
}

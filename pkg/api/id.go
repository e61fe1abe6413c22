package api

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var idPattern = regexp.MustCompile(`^[a-z]+_[a-zA-Z0-9]{24}$`)

// NewRecordID generates a record ID for the given kind: the kind's prefix
// followed by 24 cryptographically random alphanumeric characters.
func NewRecordID(kind Kind) string {
	return kind.IDPrefix() + randomAlphanumeric(idLength)
}

// ValidRecordID checks whether id is a well-formed record ID for the kind.
func ValidRecordID(kind Kind, id string) bool {
	if !idPattern.MatchString(id) {
		return false
	}
	prefix := kind.IDPrefix()
	return prefix != "" && len(id) == len(prefix)+idLength && id[:len(prefix)] == prefix
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}

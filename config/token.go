package config

import (
	"crypto/rand"
	"encoding/hex"
)

// randomToken produces a 32-byte hex bearer token for freshly created
// configurations so a default install is never unauthenticated.
func randomToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

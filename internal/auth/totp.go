package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

const (
	guardAlphabet   = "23456789BCDFGHJKMNPQRTVWXY"
	guardCodeLength = 5
	guardStep       = 30
)

// GenerateAuthCode returns the Steam Guard mobile code for the base64
// shared secret at t.
func GenerateAuthCode(sharedSecret string, t time.Time) (string, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sharedSecret))
	if err != nil {
		return "", fmt.Errorf("decode shared secret: %w", err)
	}
	if len(key) == 0 {
		return "", fmt.Errorf("empty shared secret")
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(t.Unix()/guardStep))

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	full := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	code := make([]byte, guardCodeLength)
	for i := range code {
		code[i] = guardAlphabet[full%uint32(len(guardAlphabet))]
		full /= uint32(len(guardAlphabet))
	}
	return string(code), nil
}

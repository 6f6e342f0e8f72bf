// Package webhook delivers signed activity notifications to an external
// HTTP endpoint.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

var (
	// ErrReplayWindowExceeded is returned when timestamp is outside replay window.
	ErrReplayWindowExceeded = errors.New("timestamp outside replay window")
	// ErrInvalidSignature is returned when signature verification fails.
	ErrInvalidSignature = errors.New("invalid signature")
)

// DefaultReplayWindow is how far a receiver should accept timestamps from its own clock.
const DefaultReplayWindow = 5 * time.Minute

// GenerateSignature returns the hex HMAC-SHA256 of "{timestamp}.{payload}".
func GenerateSignature(secret string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte{'.'})
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidateSignature verifies a delivery the way a receiver would, rejecting
// timestamps further than window from now.
func ValidateSignature(secret, signature string, timestamp int64, payload []byte, window time.Duration, now time.Time) error {
	if abs(now.Unix()-timestamp) > int64(window.Seconds()) {
		return ErrReplayWindowExceeded
	}

	expected := GenerateSignature(secret, timestamp, payload)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

package webhook

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateSignature(t *testing.T) {
	tests := []struct {
		name      string
		secret    string
		timestamp int64
		payload   []byte
	}{
		{
			name:      "basic signature",
			secret:    "whsec_test123",
			timestamp: 1736600000,
			payload:   []byte(`{"event_type":"cost.created","event_id":"123"}`),
		},
		{
			name:      "empty payload",
			secret:    "secret",
			timestamp: 1000000000,
			payload:   []byte(`{}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := GenerateSignature(tt.secret, tt.timestamp, tt.payload)

			// Hex-encoded SHA256
			if len(sig) != 64 {
				t.Errorf("signature length = %d, want 64", len(sig))
			}
			if sig != GenerateSignature(tt.secret, tt.timestamp, tt.payload) {
				t.Error("signature is not deterministic")
			}
			if sig == GenerateSignature(tt.secret, tt.timestamp+1, tt.payload) {
				t.Error("different timestamp should produce different signature")
			}
			if sig == GenerateSignature(tt.secret+"x", tt.timestamp, tt.payload) {
				t.Error("different secret should produce different signature")
			}
		})
	}
}

func TestValidateSignature(t *testing.T) {
	secret := "test_secret"
	now := time.Unix(1736600000, 0)
	timestamp := now.Unix()
	payload := []byte(`{"test":"data"}`)

	tests := []struct {
		name      string
		signature string
		timestamp int64
		wantErr   error
	}{
		{
			name:      "valid signature",
			signature: GenerateSignature(secret, timestamp, payload),
			timestamp: timestamp,
		},
		{
			name:      "invalid signature",
			signature: "invalid",
			timestamp: timestamp,
			wantErr:   ErrInvalidSignature,
		},
		{
			name:      "expired timestamp",
			signature: GenerateSignature(secret, now.Add(-10*time.Minute).Unix(), payload),
			timestamp: now.Add(-10 * time.Minute).Unix(),
			wantErr:   ErrReplayWindowExceeded,
		},
		{
			name:      "future timestamp beyond window",
			signature: GenerateSignature(secret, now.Add(10*time.Minute).Unix(), payload),
			timestamp: now.Add(10 * time.Minute).Unix(),
			wantErr:   ErrReplayWindowExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSignature(secret, tt.signature, tt.timestamp, payload, DefaultReplayWindow, now)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateSignature() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

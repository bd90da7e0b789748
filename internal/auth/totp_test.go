package auth

import (
	"testing"
	"time"
)

func TestGenerateAuthCode(t *testing.T) {
	secret := "MDEyMzQ1Njc4OWFiY2RlZmdoaWo="

	tests := []struct {
		unix int64
		want string
	}{
		{0, "CX2MR"},
		{1700000000, "C96G3"},
		{1700000029, "JGGKH"},
		{1700000030, "JGGKH"},
		{1760000000, "QH7V3"},
	}

	for _, tt := range tests {
		got, err := GenerateAuthCode(secret, time.Unix(tt.unix, 0))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.want {
			t.Errorf("GenerateAuthCode(%d) = %s, want %s", tt.unix, got, tt.want)
		}
	}
}

func TestGenerateAuthCodeInvalidSecret(t *testing.T) {
	if _, err := GenerateAuthCode("not base64!", time.Now()); err == nil {
		t.Error("expected error for invalid secret")
	}
	if _, err := GenerateAuthCode("", time.Now()); err == nil {
		t.Error("expected error for empty secret")
	}
}

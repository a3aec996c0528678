package session

import (
	"errors"
	"testing"
	"time"
)

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	manager := NewJWTManager(DefaultJWTConfig())

	token, err := manager.Generate("participant-1", "Karim")
	if err != nil {
		t.Fatalf("Generate() unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("Generate() returned empty token")
	}

	claims, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if claims.ParticipantID != "participant-1" {
		t.Errorf("claims.ParticipantID = %q, want %q", claims.ParticipantID, "participant-1")
	}
	if claims.Name != "Karim" {
		t.Errorf("claims.Name = %q, want %q", claims.Name, "Karim")
	}
	if claims.Issuer != "roomswap" {
		t.Errorf("claims.Issuer = %q, want %q", claims.Issuer, "roomswap")
	}
}

func TestJWTManager_ValidateErrors(t *testing.T) {
	manager := NewJWTManager(DefaultJWTConfig())

	expiredConfig := DefaultJWTConfig()
	expiredConfig.TokenDuration = -time.Minute
	expiredToken, err := NewJWTManager(expiredConfig).Generate("participant-1", "Karim")
	if err != nil {
		t.Fatalf("Generate() unexpected error: %v", err)
	}

	otherConfig := DefaultJWTConfig()
	otherConfig.SecretKey = "a-different-secret"
	foreignToken, err := NewJWTManager(otherConfig).Generate("participant-1", "Karim")
	if err != nil {
		t.Fatalf("Generate() unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{
			name:    "garbage token",
			token:   "not-a-token",
			wantErr: ErrInvalidToken,
		},
		{
			name:    "empty token",
			token:   "",
			wantErr: ErrInvalidToken,
		},
		{
			name:    "wrong signing key",
			token:   foreignToken,
			wantErr: ErrInvalidToken,
		},
		{
			name:    "expired token",
			token:   expiredToken,
			wantErr: ErrExpiredToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manager.Validate(tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

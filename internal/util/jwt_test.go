package util

import (
	"errors"
	"testing"
)

const testSecret = "unit-test-secret"

func TestQuizNonceRoundTrip(t *testing.T) {
	nonce, err := GenerateQuizNonce(7, 1, testSecret)
	if err != nil {
		t.Fatalf("GenerateQuizNonce: %v", err)
	}

	if err := VerifyQuizNonce(nonce, 7, 1, testSecret); err != nil {
		t.Errorf("VerifyQuizNonce: %v", err)
	}
}

func TestQuizNonceRejectsMismatch(t *testing.T) {
	nonce, err := GenerateQuizNonce(7, 1, testSecret)
	if err != nil {
		t.Fatalf("GenerateQuizNonce: %v", err)
	}

	tests := []struct {
		name   string
		nonce  string
		userID uint
		quizID uint
		secret string
	}{
		{"wrong user", nonce, 8, 1, testSecret},
		{"wrong quiz", nonce, 7, 2, testSecret},
		{"wrong secret", nonce, 7, 1, "other-secret"},
		{"garbage token", "not.a.token", 7, 1, testSecret},
		{"empty token", "", 7, 1, testSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyQuizNonce(tt.nonce, tt.userID, tt.quizID, tt.secret)
			if !errors.Is(err, ErrInvalidNonce) {
				t.Errorf("err = %v, want ErrInvalidNonce", err)
			}
		})
	}
}

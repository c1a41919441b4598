package service

import (
	"college_portal_backend/internal/config"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// AttemptTokenService mints and checks the per-attempt bearer token a
// student must present when submitting. The token is deterministic for a
// given (attempt, student, test) triple, so the server never has to store
// anything beyond the copy kept on the attempt row itself.
type AttemptTokenService struct {
	secret []byte
}

func NewAttemptTokenService(cfg *config.Config) *AttemptTokenService {
	return &AttemptTokenService{secret: []byte(cfg.Attempt.TokenSecret)}
}

// Generate returns the hex HMAC-SHA256 of "attemptID:studentID:testID".
func (s *AttemptTokenService) Generate(attemptID, studentID, testID uint) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%d:%d:%d", attemptID, studentID, testID)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a presented token in constant time.
func (s *AttemptTokenService) Verify(token string, attemptID, studentID, testID uint) bool {
	expected := s.Generate(attemptID, studentID, testID)
	return hmac.Equal([]byte(token), []byte(expected))
}

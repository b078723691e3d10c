package mfa

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// DefaultOTPLength is the number of digits used when no length is configured.
const DefaultOTPLength = 6

// GenerateOTP returns a numeric OTP of the given length (e.g. "048213").
// Digits are uniform: bytes >= 250 are rejected so modulo 10 has no bias.
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		length = DefaultOTPLength
	}
	s := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(s) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		for _, b := range buf {
			if b >= 250 {
				continue
			}
			s = append(s, '0'+b%10)
			if len(s) == length {
				break
			}
		}
	}
	return string(s), nil
}

// HashOTP returns a SHA-256 hash of the OTP string, hex-encoded.
func HashOTP(otp string) string {
	h := sha256.Sum256([]byte(otp))
	return hex.EncodeToString(h[:])
}

// OTPEqual performs constant-time comparison of the provided OTP's hash with the stored hash.
func OTPEqual(providedOTP, storedHash string) bool {
	providedHash := HashOTP(providedOTP)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}

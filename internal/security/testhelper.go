package security

import "time"

// NewTestTokenProvider returns a TokenProvider over a fresh ES256 key pair with a one hour TTL.
// For tests in this and dependent packages.
func NewTestTokenProvider() (*TokenProvider, error) {
	signer, pub, err := GenerateES256Key()
	if err != nil {
		return nil, err
	}
	return NewTokenProvider(signer, pub, "anomalyguard-test", "anomalyguard-test", time.Hour), nil
}

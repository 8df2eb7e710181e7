package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// referralAlphabet excludes visually ambiguous characters (0/O, 1/I/L)
// so codes survive being read aloud or retyped from screenshots.
const referralAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// ReferralCodeLength is the fixed length of user referral codes.
const ReferralCodeLength = 6

// GenerateReferralCode creates a random 6-character referral code from the
// restricted alphabet. Uniqueness is enforced by the database index; the
// caller retries on collision.
func GenerateReferralCode() (string, error) {
	code := make([]byte, ReferralCodeLength)
	max := big.NewInt(int64(len(referralAlphabet)))

	for i := range code {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate referral code: %w", err)
		}
		code[i] = referralAlphabet[idx.Int64()]
	}

	return string(code), nil
}

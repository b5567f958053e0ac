package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// ChallengeAlphabet omits characters that are easy to confuse (0/O, 1/l/I).
const ChallengeAlphabet = "23456789abcdefghjkmnpqrstuvwxyz"

const correlationSize = 16

// CompactUUID returns a random UUID without dashes.
func CompactUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewCorrelationState returns a random base64url value binding a QR handshake
// to the code actually displayed.
func NewCorrelationState() (string, error) {
	var raw [correlationSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewChallenge returns length characters drawn uniformly from ChallengeAlphabet.
func NewChallenge(length int) (string, error) {
	return randomString(length, ChallengeAlphabet)
}

// NewOTP returns a numeric code of the given length.
func NewOTP(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}
	return randomString(digits, "0123456789")
}

func randomString(length int, alphabet string) (string, error) {
	if length <= 0 {
		return "", errors.New("invalid length")
	}

	var b strings.Builder
	b.Grow(length)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}

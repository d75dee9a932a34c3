package rand

import (
	cryptoRand "crypto/rand"

	"github.com/google/uuid"
)

// GenerateCryptoSafeRandomData fills b with cryptographically-safe random data.
// It is the default source of the S1 random block.
func GenerateCryptoSafeRandomData(b []byte) error {
	_, err := cryptoRand.Read(b)
	return err
}

// GenerateUuid returns a UUID in string format (including hyphens). Sessions use it as their ID.
func GenerateUuid() string {
	return uuid.NewString()
}

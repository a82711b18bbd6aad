package password

import (
	"crypto/rand"
	"math/big"
)

const (
	uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowercase = "abcdefghijklmnopqrstuvwxyz"
	digits    = "0123456789"
	special   = "!@#$%^&*()_+-=[]{}|;:,.<>?"

	// DefaultLength is the length used for generated trainee passwords.
	DefaultLength = 12
)

// Generate produces a random password of the given length containing at
// least one uppercase letter, one lowercase letter, one digit and one
// special character. Lengths below 4 are raised to 4.
func Generate(length int) string {
	if length < 4 {
		length = 4
	}

	chars := make([]byte, 0, length)
	chars = append(chars,
		pick(uppercase),
		pick(lowercase),
		pick(digits),
		pick(special),
	)

	all := uppercase + lowercase + digits + special
	for len(chars) < length {
		chars = append(chars, pick(all))
	}

	shuffle(chars)
	return string(chars)
}

func pick(set string) byte {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		// crypto/rand failing means the platform entropy source is broken.
		panic(err)
	}
	return set[n.Int64()]
}

func shuffle(b []byte) {
	for i := len(b) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			panic(err)
		}
		j := n.Int64()
		b[i], b[j] = b[j], b[i]
	}
}

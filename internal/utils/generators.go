package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateCheckinCode returns an opaque door token, e.g. "GTH-K4Q7X2MR".
// The alphabet skips 0/O/1/I so the token survives being read aloud.
func GenerateCheckinCode() string {
	b := make([]byte, 8)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return fmt.Sprintf("GTH-%d", time.Now().UnixNano())
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return "GTH-" + string(b)
}

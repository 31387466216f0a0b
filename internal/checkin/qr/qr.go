package qr

import (
	"github.com/skip2/go-qrcode"
)

// Generator renders check-in code tokens as QR PNGs for door displays
// and printed signage.
type Generator struct {
	size int
}

func NewGenerator() *Generator {
	return &Generator{size: 256}
}

// EncodeCode renders the opaque token. The QR carries only the token
// itself; redemption still goes through the validator and recorder.
func (g *Generator) EncodeCode(code string) ([]byte, error) {
	return qrcode.Encode(code, qrcode.Medium, g.size)
}

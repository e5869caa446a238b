// Package verifactu contiene el cálculo de la huella (SHA-256) de los registros de
// facturación y las validaciones de negocio previas al envío a la AEAT.
package verifactu

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/jhoicas/verifactu/internal/domain"
	"github.com/jhoicas/verifactu/pkg/verifactu"
)

// Hasher calcula la huella de un texto canónico. Solo se admite SHA-256 sobre UTF-8,
// que es la combinación que exige la AEAT (TipoHuella = 01).
type Hasher struct {
	algorithm string
	encoding  string
	enc       encoding.Encoding
}

// NewHasher valida el algoritmo y la codificación configurados. Debe llamarse al
// arrancar: una configuración no soportada es un error fatal.
func NewHasher(algorithm, charset string) (*Hasher, error) {
	switch strings.ToUpper(strings.TrimSpace(algorithm)) {
	case "SHA-256", "SHA256", verifactu.HashTypeSHA256:
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedAlgorithm, algorithm)
	}
	enc, err := ianaindex.IANA.Encoding(strings.TrimSpace(charset))
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedEncoding, charset)
	}
	name, err := ianaindex.IANA.Name(enc)
	if err != nil || name != "UTF-8" {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedEncoding, charset)
	}
	return &Hasher{algorithm: "SHA-256", encoding: name, enc: enc}, nil
}

// MustDefaultHasher SHA-256/UTF-8. Para tests y herramientas.
func MustDefaultHasher() *Hasher {
	h, err := NewHasher("SHA-256", "UTF-8")
	if err != nil {
		panic(err)
	}
	return h
}

// Digest devuelve la huella en hexadecimal mayúsculas, 64 caracteres.
func (h *Hasher) Digest(text string) (string, error) {
	b, err := h.enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return "", fmt.Errorf("verifactu: codificar entrada de huella: %w", err)
	}
	sum := sha256.Sum256(b)
	return strings.ToUpper(hex.EncodeToString(sum[:])), nil
}

// HashType código TipoHuella que acompaña a la huella en el XML.
func (h *Hasher) HashType() string {
	return verifactu.HashTypeSHA256
}

// String algoritmo/codificación, para logs.
func (h *Hasher) String() string {
	return h.algorithm + "/" + h.encoding
}

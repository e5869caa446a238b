package verifactu

import (
	"fmt"
	"strings"
)

// Letras de control del DNI/NIE (módulo 23).
const dniLetters = "TRWAGMYFPDXBNJZSQVHLCKE"

// Letras de control de personas jurídicas (CIF), índice = dígito de control.
const cifLetters = "JABCDEFGHI"

// ValidateNIF valida el formato y el carácter de control de un NIF español:
// DNI (8 dígitos + letra), NIE (X/Y/Z + 7 dígitos + letra), NIF especial (K/L/M)
// y NIF de persona jurídica (letra + 7 dígitos + control).
func ValidateNIF(nif string) error {
	n := NormalizeNIF(nif)
	if len(n) != 9 {
		return fmt.Errorf("verifactu: el NIF debe tener 9 caracteres, se recibieron %d", len(n))
	}
	first := n[0]
	switch {
	case isDigit(first):
		return checkDNI(n[:8], n[8])
	case first == 'X' || first == 'Y' || first == 'Z':
		prefix := map[byte]byte{'X': '0', 'Y': '1', 'Z': '2'}[first]
		return checkDNI(string(prefix)+n[1:8], n[8])
	case first == 'K' || first == 'L' || first == 'M':
		return checkDNI(n[1:8], n[8])
	case strings.IndexByte("ABCDEFGHJNPQRSUVW", first) >= 0:
		return checkCIF(n)
	default:
		return fmt.Errorf("verifactu: NIF con carácter inicial no válido %q", first)
	}
}

// NormalizeNIF elimina espacios y guiones y pasa a mayúsculas.
func NormalizeNIF(nif string) string {
	r := strings.NewReplacer(" ", "", "-", "", ".", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(nif)))
}

func checkDNI(number string, control byte) error {
	var n int
	for i := 0; i < len(number); i++ {
		if !isDigit(number[i]) {
			return fmt.Errorf("verifactu: NIF con dígitos no válidos")
		}
		n = n*10 + int(number[i]-'0')
	}
	expected := dniLetters[n%23]
	if control != expected {
		return fmt.Errorf("verifactu: letra de control del NIF inválida: esperada %c, recibida %c", expected, control)
	}
	return nil
}

func checkCIF(n string) error {
	digits := n[1:8]
	var sum int
	for i := 0; i < len(digits); i++ {
		if !isDigit(digits[i]) {
			return fmt.Errorf("verifactu: NIF de persona jurídica con dígitos no válidos")
		}
		d := int(digits[i] - '0')
		if i%2 == 0 {
			d *= 2
			d = d/10 + d%10
		}
		sum += d
	}
	ctrl := (10 - sum%10) % 10
	got := n[8]
	letterOnly := strings.IndexByte("NPQRSW", n[0]) >= 0
	digitOnly := strings.IndexByte("ABEH", n[0]) >= 0
	switch {
	case got == byte('0'+ctrl) && !letterOnly:
		return nil
	case got == cifLetters[ctrl] && !digitOnly:
		return nil
	}
	return fmt.Errorf("verifactu: carácter de control del NIF de persona jurídica inválido")
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

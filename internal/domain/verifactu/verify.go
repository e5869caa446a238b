package verifactu

import (
	"fmt"

	"github.com/jhoicas/verifactu/internal/domain/entity"
)

// ChainBreak describe un eslabón que no cuadra al recalcular la cadena.
type ChainBreak struct {
	LinkID uint64
	Reason string
}

func (b ChainBreak) Error() string {
	return fmt.Sprintf("eslabón %d: %s", b.LinkID, b.Reason)
}

// VerifyEntries recalcula la huella de cada línea de control y comprueba que
// enlaza con la anterior. prev es la huella del último eslabón previo a entries
// ("" si entries empieza la cadena). Devuelve la huella final y las roturas encontradas.
func VerifyEntries(h *Hasher, prev string, entries []entity.ChainEntry) (string, []ChainBreak) {
	var breaks []ChainBreak
	var lastID uint64
	for i, e := range entries {
		if i > 0 && e.LinkID != lastID+1 {
			breaks = append(breaks, ChainBreak{LinkID: e.LinkID, Reason: fmt.Sprintf("numeración discontinua tras %d", lastID)})
		}
		lastID = e.LinkID

		digest, err := h.Digest(e.HashInput)
		if err != nil {
			breaks = append(breaks, ChainBreak{LinkID: e.LinkID, Reason: err.Error()})
			continue
		}
		if digest != e.Huella {
			breaks = append(breaks, ChainBreak{LinkID: e.LinkID, Reason: "la huella no coincide con su entrada canónica"})
		}
		if (i > 0 || prev != "") && PrevHuellaOf(e.HashInput) != prev {
			breaks = append(breaks, ChainBreak{LinkID: e.LinkID, Reason: "no enlaza con la huella del eslabón anterior"})
		}
		prev = e.Huella
	}
	return prev, breaks
}

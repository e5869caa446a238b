package verifactu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/verifactu/internal/domain/entity"
	"github.com/jhoicas/verifactu/internal/domain/verifactu"
)

func buildEntries(t *testing.T, n int) []entity.ChainEntry {
	t.Helper()
	h := verifactu.MustDefaultHasher()
	prev := ""
	var out []entity.ChainEntry
	for i := 1; i <= n; i++ {
		r := altaRecord("A-" + string(rune('0'+i)))
		r.Link = entity.ChainLink{First: prev == "", PrevHuella: prev}
		r.Timestamp = "2025-01-01T10:00:0" + string(rune('0'+i)) + "+01:00"
		in, err := verifactu.HashInput(r)
		require.NoError(t, err)
		d, err := h.Digest(in)
		require.NoError(t, err)
		out = append(out, entity.ChainEntry{LinkID: uint64(i), Timestamp: r.Timestamp, Huella: d, HashInput: in})
		prev = d
	}
	return out
}

func TestVerifyEntries_CadenaIntegra(t *testing.T) {
	entries := buildEntries(t, 5)
	last, breaks := verifactu.VerifyEntries(verifactu.MustDefaultHasher(), "", entries)
	assert.Empty(t, breaks)
	assert.Equal(t, entries[4].Huella, last)
}

func TestVerifyEntries_DetectaManipulacion(t *testing.T) {
	entries := buildEntries(t, 3)
	entries[1].HashInput = entries[1].HashInput + "X"

	_, breaks := verifactu.VerifyEntries(verifactu.MustDefaultHasher(), "", entries)
	require.Len(t, breaks, 1)
	assert.Equal(t, uint64(2), breaks[0].LinkID)
}

func TestVerifyEntries_EnlaceRoto(t *testing.T) {
	entries := buildEntries(t, 3)
	_, breaks := verifactu.VerifyEntries(verifactu.MustDefaultHasher(), "OTRA", entries)
	require.NotEmpty(t, breaks)
	assert.Equal(t, uint64(1), breaks[0].LinkID)
}

func TestVerifyEntries_NumeracionDiscontinua(t *testing.T) {
	entries := buildEntries(t, 3)
	entries = append(entries[:1], entries[2:]...)
	_, breaks := verifactu.VerifyEntries(verifactu.MustDefaultHasher(), "", entries)
	assert.NotEmpty(t, breaks)
}

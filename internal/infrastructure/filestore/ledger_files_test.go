package filestore_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/verifactu/internal/domain/entity"
	"github.com/jhoicas/verifactu/internal/infrastructure/filestore"
	"github.com/jhoicas/verifactu/internal/testutil"
)

func newFiles(t *testing.T) (*filestore.LedgerFiles, string) {
	t.Helper()
	dir := t.TempDir()
	f, err := filestore.NewLedgerFiles(dir, testutil.Madrid())
	require.NoError(t, err)
	return f, dir
}

func entry(id uint64, input string) entity.ChainEntry {
	return entity.ChainEntry{
		LinkID:       id,
		Timestamp:    "2025-03-10T09:00:00+01:00",
		Huella:       "ABC",
		Kind:         entity.RecordKindAlta,
		IssuerNIF:    "S1",
		SeriesNumber: "A;1", // el separador se escapa
		IssueDate:    "01-01-2025",
		HashInput:    input,
	}
}

func TestLedgerFiles_SnapshotIdaYVuelta(t *testing.T) {
	f, dir := newFiles(t)
	_, ok, err := f.ReadSnapshot("S1")
	require.NoError(t, err)
	assert.False(t, ok)

	head := entity.ChainHead{
		LinkID:      7,
		GeneratedAt: time.Date(2025, 3, 10, 9, 0, 5, 0, testutil.Madrid()),
		Huella:      "F7B94CFD",
		ID:          entity.InvoiceID{IssuerNIF: "S1", SeriesNumber: "A-7", IssueDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, f.WriteSnapshot("S1", head))

	raw, err := os.ReadFile(filepath.Join(dir, "S1", "_S1.csv"))
	require.NoError(t, err)
	assert.Equal(t, "7;10/03/2025 09:00:05;F7B94CFD;01-03-2025;S1;A-7\n", string(raw))

	got, ok, err := f.ReadSnapshot("S1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, head.LinkID, got.LinkID)
	assert.Equal(t, head.Huella, got.Huella)
	assert.Equal(t, head.ID.SeriesNumber, got.ID.SeriesNumber)
	assert.True(t, head.GeneratedAt.Equal(got.GeneratedAt))
	assert.True(t, head.ID.IssueDate.Equal(got.ID.IssueDate))

	require.NoError(t, f.DeleteSnapshot("S1"))
	require.NoError(t, f.DeleteSnapshot("S1"))
	_, ok, err = f.ReadSnapshot("S1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedgerFiles_AppendBackupRestore(t *testing.T) {
	f, dir := newFiles(t)
	ok, err := f.MonthExists("S1", "202503")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.BackupMonth("S1", "202503"), "sin archivo mensual no hay copia")
	require.NoError(t, f.AppendEntry("S1", "202503", entry(1, "a=1&b=2")))
	require.NoError(t, f.BackupMonth("S1", "202503"))
	require.NoError(t, f.AppendEntry("S1", "202503", entry(2, "a=3&b=4")))

	entries, err := f.ReadMonth("S1", "202503")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entry(2, "a=3&b=4"), entries[1])

	prev, err := os.ReadFile(filepath.Join(dir, "S1", "202503.PREV.csv"))
	require.NoError(t, err)

	require.NoError(t, f.RestoreMonth("S1", "202503"))
	month, err := os.ReadFile(filepath.Join(dir, "S1", "202503.csv"))
	require.NoError(t, err)
	assert.Equal(t, prev, month)

	entries, err = f.ReadMonth("S1", "202503")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	periods, err := f.Periods("S1")
	require.NoError(t, err)
	assert.Equal(t, []string{"202503"}, periods, "la copia .PREV no es un periodo")

	require.NoError(t, f.DeleteMonth("S1", "202503"))
	ok, err = f.MonthExists("S1", "202503")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = os.Stat(filepath.Join(dir, "S1", "202503.PREV.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestLedgerFiles_RestoreSinCopiaFalla(t *testing.T) {
	f, _ := newFiles(t)
	require.NoError(t, f.AppendEntry("S1", "202503", entry(1, "x")))
	assert.Error(t, f.RestoreMonth("S1", "202503"))
}

func TestLedgerFiles_Sellers(t *testing.T) {
	f, dir := newFiles(t)
	require.NoError(t, f.AppendEntry("S2", "202503", entry(1, "x")))
	require.NoError(t, f.AppendEntry("S1", "202503", entry(1, "x")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "suelto.txt"), nil, 0o644))

	sellers, err := f.Sellers()
	require.NoError(t, err)
	assert.Equal(t, []string{"S1", "S2"}, sellers)
}

func TestLedgerFiles_RutasNoValidas(t *testing.T) {
	f, _ := newFiles(t)
	for _, s := range []string{"", "..", "a/b", `a\b`} {
		_, err := f.SellerDir(s)
		assert.Error(t, err, s)
	}
	_, err := f.MonthExists("S1", "2025-03")
	assert.Error(t, err)

	_, err = filestore.NewLedgerFiles(" ", nil)
	assert.Error(t, err)
}

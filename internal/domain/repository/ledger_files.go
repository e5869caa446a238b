package repository

import "github.com/jhoicas/verifactu/internal/domain/entity"

// LedgerFiles define el puerto de persistencia de la cadena de un vendedor:
// archivo de estado actual, archivos mensuales y su copia .PREV.
// Cada vendedor lo escribe en exclusiva su Ledger.
type LedgerFiles interface {
	// Sellers lista los vendedores con directorio bajo la raíz.
	Sellers() ([]string, error)

	// ReadSnapshot devuelve el eslabón actual guardado; ok=false si no hay archivo de estado.
	ReadSnapshot(seller string) (head entity.ChainHead, ok bool, err error)
	WriteSnapshot(seller string, head entity.ChainHead) error
	DeleteSnapshot(seller string) error

	// Periods lista los periodos YYYYMM con archivo mensual, en orden ascendente.
	Periods(seller string) ([]string, error)
	MonthExists(seller, period string) (bool, error)
	// BackupMonth copia el archivo mensual a su .PREV (una sola generación).
	BackupMonth(seller, period string) error
	// RestoreMonth sustituye el archivo mensual por su .PREV.
	RestoreMonth(seller, period string) error
	DeleteMonth(seller, period string) error
	AppendEntry(seller, period string, entry entity.ChainEntry) error
	ReadMonth(seller, period string) ([]entity.ChainEntry, error)
}

// Package filestore persiste la cadena de huellas en disco: un directorio por vendedor
// con el archivo de estado actual y los archivos mensuales en CSV separado por ';'.
package filestore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jhoicas/verifactu/internal/domain/entity"
	"github.com/jhoicas/verifactu/internal/domain/repository"
)

var _ repository.LedgerFiles = (*LedgerFiles)(nil)

const (
	separator   = ';'
	snapshotLen = 6
	entryLen    = 8
	prevSuffix  = ".PREV"
	ext         = ".csv"
)

var monthFile = regexp.MustCompile(`^[0-9]{6}\.csv$`)

// LedgerFiles implementación en disco de repository.LedgerFiles.
//
//	<root>/<seller>/_<seller>.csv       estado actual
//	<root>/<seller>/<YYYYMM>.csv        archivo mensual
//	<root>/<seller>/<YYYYMM>.PREV.csv   copia previa a la última escritura
type LedgerFiles struct {
	root string
	loc  *time.Location
}

// NewLedgerFiles crea la raíz si no existe. loc es la zona en la que se interpreta
// la fecha del archivo de estado (que no lleva huso).
func NewLedgerFiles(root string, loc *time.Location) (*LedgerFiles, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("filestore: la ruta raíz es obligatoria")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: crear raíz %s: %w", root, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &LedgerFiles{root: root, loc: loc}, nil
}

// Root ruta raíz.
func (f *LedgerFiles) Root() string { return f.root }

// SellerDir directorio del vendedor.
func (f *LedgerFiles) SellerDir(seller string) (string, error) {
	if seller == "" || seller == "." || seller == ".." || strings.ContainsAny(seller, `/\`) {
		return "", fmt.Errorf("filestore: identificador de vendedor no válido %q", seller)
	}
	return filepath.Join(f.root, seller), nil
}

func (f *LedgerFiles) snapshotPath(seller string) (string, error) {
	dir, err := f.SellerDir(seller)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "_"+seller+ext), nil
}

func (f *LedgerFiles) monthPath(seller, period string) (string, error) {
	dir, err := f.SellerDir(seller)
	if err != nil {
		return "", err
	}
	if !monthFile.MatchString(period + ext) {
		return "", fmt.Errorf("filestore: periodo no válido %q", period)
	}
	return filepath.Join(dir, period+ext), nil
}

func (f *LedgerFiles) prevPath(seller, period string) (string, error) {
	p, err := f.monthPath(seller, period)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(p, ext) + prevSuffix + ext, nil
}

// Sellers lista los subdirectorios de la raíz.
func (f *LedgerFiles) Sellers() ([]string, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("filestore: leer raíz: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// ReadSnapshot lee el estado actual del vendedor.
func (f *LedgerFiles) ReadSnapshot(seller string) (entity.ChainHead, bool, error) {
	path, err := f.snapshotPath(seller)
	if err != nil {
		return entity.ChainHead{}, false, err
	}
	rows, err := readCSV(path)
	if errors.Is(err, os.ErrNotExist) {
		return entity.ChainHead{}, false, nil
	}
	if err != nil {
		return entity.ChainHead{}, false, err
	}
	if len(rows) == 0 {
		return entity.ChainHead{}, false, nil
	}
	head, err := f.parseSnapshot(rows[len(rows)-1])
	if err != nil {
		return entity.ChainHead{}, false, fmt.Errorf("filestore: %s: %w", path, err)
	}
	return head, true, nil
}

func (f *LedgerFiles) parseSnapshot(row []string) (entity.ChainHead, error) {
	if len(row) != snapshotLen {
		return entity.ChainHead{}, fmt.Errorf("se esperaban %d campos, hay %d", snapshotLen, len(row))
	}
	id, err := strconv.ParseUint(row[0], 10, 64)
	if err != nil {
		return entity.ChainHead{}, fmt.Errorf("linkId: %w", err)
	}
	ts, err := time.ParseInLocation(entity.SnapshotTimeLayout, row[1], f.loc)
	if err != nil {
		return entity.ChainHead{}, fmt.Errorf("fecha: %w", err)
	}
	date, err := time.ParseInLocation(entity.IssueDateLayout, row[3], time.UTC)
	if err != nil {
		return entity.ChainHead{}, fmt.Errorf("fecha de expedición: %w", err)
	}
	return entity.ChainHead{
		LinkID:      id,
		GeneratedAt: ts,
		Huella:      row[2],
		ID:          entity.InvoiceID{IssuerNIF: row[4], SeriesNumber: row[5], IssueDate: date},
	}, nil
}

// WriteSnapshot sobrescribe el estado actual (escritura a temporal y renombrado).
func (f *LedgerFiles) WriteSnapshot(seller string, head entity.ChainHead) error {
	path, err := f.snapshotPath(seller)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("filestore: crear directorio: %w", err)
	}
	return writeFileAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		cw.Comma = separator
		if err := cw.Write(head.Fields()); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	})
}

// DeleteSnapshot elimina el estado actual. No falla si no existe.
func (f *LedgerFiles) DeleteSnapshot(seller string) error {
	path, err := f.snapshotPath(seller)
	if err != nil {
		return err
	}
	return removeIfExists(path)
}

// Periods periodos con archivo mensual, ascendentes.
func (f *LedgerFiles) Periods(seller string) ([]string, error) {
	dir, err := f.SellerDir(seller)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: leer %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && monthFile.MatchString(e.Name()) {
			out = append(out, strings.TrimSuffix(e.Name(), ext))
		}
	}
	sort.Strings(out)
	return out, nil
}

// MonthExists indica si existe el archivo mensual.
func (f *LedgerFiles) MonthExists(seller, period string) (bool, error) {
	path, err := f.monthPath(seller, period)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("filestore: %w", err)
	}
}

// BackupMonth copia el archivo mensual a .PREV. Sin archivo mensual no hace nada.
func (f *LedgerFiles) BackupMonth(seller, period string) error {
	src, err := f.monthPath(seller, period)
	if err != nil {
		return err
	}
	dst, _ := f.prevPath(seller, period)
	err = copyFile(src, dst)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// RestoreMonth vuelve a dejar el archivo mensual como estaba en su .PREV.
func (f *LedgerFiles) RestoreMonth(seller, period string) error {
	dst, err := f.monthPath(seller, period)
	if err != nil {
		return err
	}
	src, _ := f.prevPath(seller, period)
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("filestore: restaurar %s: %w", filepath.Base(dst), err)
	}
	return nil
}

// DeleteMonth elimina el archivo mensual y su .PREV.
func (f *LedgerFiles) DeleteMonth(seller, period string) error {
	path, err := f.monthPath(seller, period)
	if err != nil {
		return err
	}
	prev, _ := f.prevPath(seller, period)
	if err := removeIfExists(path); err != nil {
		return err
	}
	return removeIfExists(prev)
}

// AppendEntry añade la línea de control al archivo mensual y sincroniza a disco.
func (f *LedgerFiles) AppendEntry(seller, period string, entry entity.ChainEntry) error {
	path, err := f.monthPath(seller, period)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("filestore: crear directorio: %w", err)
	}
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("filestore: abrir %s: %w", filepath.Base(path), err)
	}
	cw := csv.NewWriter(fh)
	cw.Comma = separator
	if err := cw.Write(entry.Fields()); err != nil {
		fh.Close()
		return fmt.Errorf("filestore: escribir línea: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		fh.Close()
		return fmt.Errorf("filestore: escribir línea: %w", err)
	}
	if err := fh.Sync(); err != nil {
		fh.Close()
		return fmt.Errorf("filestore: sync: %w", err)
	}
	return fh.Close()
}

// ReadMonth lee las líneas de control del periodo.
func (f *LedgerFiles) ReadMonth(seller, period string) ([]entity.ChainEntry, error) {
	path, err := f.monthPath(seller, period)
	if err != nil {
		return nil, err
	}
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	out := make([]entity.ChainEntry, 0, len(rows))
	for i, row := range rows {
		if len(row) != entryLen {
			return nil, fmt.Errorf("filestore: %s línea %d: se esperaban %d campos, hay %d", filepath.Base(path), i+1, entryLen, len(row))
		}
		id, err := strconv.ParseUint(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("filestore: %s línea %d: %w", filepath.Base(path), i+1, err)
		}
		out = append(out, entity.ChainEntry{
			LinkID:       id,
			Timestamp:    row[1],
			Huella:       row[2],
			Kind:         entity.RecordKind(row[3]),
			IssuerNIF:    row[4],
			SeriesNumber: row[5],
			IssueDate:    row[6],
			HashInput:    row[7],
		})
	}
	return out, nil
}

func readCSV(path string) ([][]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	r := csv.NewReader(fh)
	r.Comma = separator
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("filestore: leer %s: %w", filepath.Base(path), err)
	}
	return rows, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return writeFileAtomic(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

// writeFileAtomic escribe en un temporal del mismo directorio, sincroniza y renombra.
func writeFileAtomic(path string, fill func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("filestore: temporal: %w", err)
	}
	name := tmp.Name()
	if err := fill(tmp); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("filestore: escribir %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("filestore: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("filestore: cerrar temporal: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("filestore: renombrar %s: %w", filepath.Base(path), err)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("filestore: eliminar %s: %w", filepath.Base(path), err)
	}
	return nil
}

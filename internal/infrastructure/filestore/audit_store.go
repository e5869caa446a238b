package filestore

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ucarion/c14n"
)

// Nombres de las entradas dentro del ZIP de auditoría.
const (
	AuditRequestName           = "request.xml"
	AuditResponseName          = "response.xml"
	AuditCanonicalRequestName  = "request.c14n.xml"
	AuditCanonicalResponseName = "response.c14n.xml"
)

// AuditStore guarda una copia comprimida de cada remisión y su respuesta:
//
//	<root>/<seller>/audit/<YYYYMM>/<batchId>.zip
//
// Petición y respuesta se guardan byte a byte. Si el XML es bien formado se añade
// además su forma canónica (C14N) en una entrada aparte.
type AuditStore struct {
	files *LedgerFiles
	clock func() time.Time
}

// NewAuditStore comparte raíz y zona horaria con los archivos de la cadena.
func NewAuditStore(files *LedgerFiles, clock func() time.Time) *AuditStore {
	if clock == nil {
		clock = time.Now
	}
	return &AuditStore{files: files, clock: clock}
}

// Save escribe el ZIP de la remisión. response puede ser nil (fallo de transporte).
func (s *AuditStore) Save(seller, batchID string, request, response []byte) error {
	path, err := s.path(seller, s.clock().In(s.files.loc).Format("200601"), batchID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("auditoría: crear directorio: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if err := addDocument(zw, AuditRequestName, AuditCanonicalRequestName, request); err != nil {
		return err
	}
	if len(response) > 0 {
		if err := addDocument(zw, AuditResponseName, AuditCanonicalResponseName, response); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("auditoría: cerrar zip: %w", err)
	}
	return writeFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// Read devuelve las entradas del ZIP de una remisión.
func (s *AuditStore) Read(seller, period, batchID string) (map[string][]byte, error) {
	path, err := s.path(seller, period, batchID)
	if err != nil {
		return nil, err
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("auditoría: abrir %s: %w", filepath.Base(path), err)
	}
	defer zr.Close()

	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("auditoría: abrir entrada %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("auditoría: leer entrada %s: %w", f.Name, err)
		}
		out[f.Name] = data
	}
	return out, nil
}

func (s *AuditStore) path(seller, period, batchID string) (string, error) {
	dir, err := s.files.SellerDir(seller)
	if err != nil {
		return "", err
	}
	if batchID == "" || strings.ContainsAny(batchID, `/\.`) {
		return "", fmt.Errorf("auditoría: identificador de remisión no válido %q", batchID)
	}
	return filepath.Join(dir, "audit", period, batchID+".zip"), nil
}

func addDocument(zw *zip.Writer, rawName, canonName string, data []byte) error {
	if err := addEntry(zw, rawName, data); err != nil {
		return err
	}
	canon, err := canonicalize(data)
	if err != nil {
		return nil
	}
	return addEntry(zw, canonName, canon)
}

func addEntry(zw *zip.Writer, name string, data []byte) error {
	fw, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("auditoría: crear entrada %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("auditoría: escribir %s: %w", name, err)
	}
	return nil
}

func canonicalize(data []byte) ([]byte, error) {
	var probe struct{ XMLName xml.Name }
	if err := xml.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	out, err := c14n.Canonicalize(dec)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("auditoría: salida canónica vacía")
	}
	return out, nil
}

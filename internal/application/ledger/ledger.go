// Package ledger mantiene la cadena de huellas de cada vendedor: eslabón actual y
// anterior en memoria, escritura en disco y deshacer de un único paso.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jhoicas/verifactu/internal/domain"
	"github.com/jhoicas/verifactu/internal/domain/entity"
	"github.com/jhoicas/verifactu/internal/domain/repository"
	"github.com/jhoicas/verifactu/internal/domain/verifactu"
	"github.com/jhoicas/verifactu/pkg/logger"
)

// Options dependencias comunes a todos los Ledger.
type Options struct {
	Files    repository.LedgerFiles
	Hasher   *verifactu.Hasher
	Location *time.Location   // huso de FechaHoraHusoGenRegistro
	Clock    func() time.Time // nil = time.Now
	Logger   *logger.Logger
}

// Ledger cadena de un vendedor. Todas las operaciones toman el cerrojo del vendedor
// durante toda su duración; vendedores distintos no se bloquean entre sí.
type Ledger struct {
	mu     sync.Mutex
	seller string
	files  repository.LedgerFiles
	hasher *verifactu.Hasher
	loc    *time.Location
	clock  func() time.Time
	log    *logger.Logger

	current     entity.ChainHead
	previous    entity.ChainHead
	hasPrevious bool
	rolledBack  bool

	// Registros insertados en memoria y aún no escritos en disco.
	unwritten []*entity.Record
	// El eslabón actual creó su archivo mensual al escribirse.
	headFreshMonth bool
	// Error de escritura: la memoria ya no coincide con el disco hasta Reload.
	fault error
}

// New crea el Ledger del vendedor e hidrata el eslabón actual desde su archivo de estado.
func New(seller string, opts Options) (*Ledger, error) {
	if seller == "" {
		return nil, domain.ErrEmptyKey
	}
	if opts.Files == nil || opts.Hasher == nil {
		return nil, errors.New("ledger: Files y Hasher son obligatorios")
	}
	l := &Ledger{
		seller: seller,
		files:  opts.Files,
		hasher: opts.Hasher,
		loc:    opts.Location,
		clock:  opts.Clock,
		log:    opts.Logger,
	}
	if l.loc == nil {
		l.loc = time.Local
	}
	if l.clock == nil {
		l.clock = time.Now
	}
	if l.log == nil {
		l.log = logger.Nop()
	}
	l.log = l.log.Component("ledger").Seller(seller)
	if err := l.hydrate(); err != nil {
		return nil, err
	}
	return l, nil
}

// hydrate carga el eslabón actual. El anterior no se puede recuperar del archivo de
// estado: tras un reinicio solo se pueden deshacer eslabones creados después.
func (l *Ledger) hydrate() error {
	head, ok, err := l.files.ReadSnapshot(l.seller)
	if err != nil {
		return fmt.Errorf("ledger %s: leer estado: %w", l.seller, err)
	}
	l.current = entity.ChainHead{}
	if ok {
		l.current = head
	}
	l.previous = entity.ChainHead{}
	l.hasPrevious = false
	l.rolledBack = false
	l.unwritten = nil
	l.headFreshMonth = false
	l.fault = nil
	return nil
}

// Seller identificador del vendedor.
func (l *Ledger) Seller() string { return l.seller }

// Head eslabón actual.
func (l *Ledger) Head() entity.ChainHead {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Previous eslabón anterior; ok=false si no hay historia para deshacer.
func (l *Ledger) Previous() (entity.ChainHead, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.previous, l.hasPrevious
}

// CurrentLinkID número del último eslabón (0 = cadena vacía).
func (l *Ledger) CurrentLinkID() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current.LinkID
}

// Pending líneas insertadas pendientes de Write.
func (l *Ledger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.unwritten)
}

// Fault error de escritura pendiente de Reload, o nil.
func (l *Ledger) Fault() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fault
}

// Insert encadena el registro tras el eslabón actual y devuelve su línea de control.
func (l *Ledger) Insert(record *entity.Record) (entity.ChainEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.insertLocked(record)
}

// InsertBatch encadena los registros en orden con una única toma del cerrojo.
// No es todo o nada: ante un error devuelve las líneas ya insertadas.
func (l *Ledger) InsertBatch(records []*entity.Record) ([]entity.ChainEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := make([]entity.ChainEntry, 0, len(records))
	for _, r := range records {
		e, err := l.insertLocked(r)
		if err != nil {
			return entries, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (l *Ledger) insertLocked(r *entity.Record) (entity.ChainEntry, error) {
	if l.fault != nil {
		return entity.ChainEntry{}, l.fault
	}
	if err := verifactu.CheckVariant(r); err != nil {
		return entity.ChainEntry{}, err
	}
	if r.Chained() {
		return entity.ChainEntry{}, fmt.Errorf("%w: %s ya está encadenado (eslabón %d)", domain.ErrInvalidRecord, r.ID.SeriesNumber, r.LinkID)
	}

	link := entity.ChainLink{First: true}
	if !l.current.Empty() {
		link = entity.ChainLink{
			PrevIssuer: l.current.ID.IssuerNIF,
			PrevSeries: l.current.ID.SeriesNumber,
			PrevDate:   l.current.ID.IssueDate,
			PrevHuella: l.current.Huella,
		}
	}
	now := l.clock().In(l.loc).Truncate(time.Second)
	ts := now.Format(entity.TimestampLayout)

	// Se calcula todo sobre una copia: si algo falla el registro queda intacto.
	staged := *r
	staged.Link = link
	staged.Timestamp = ts
	staged.GeneratedAt = now
	input, err := verifactu.HashInput(&staged)
	if err != nil {
		return entity.ChainEntry{}, err
	}
	digest, err := l.hasher.Digest(input)
	if err != nil {
		return entity.ChainEntry{}, err
	}
	linkID := l.current.LinkID + 1

	r.Link = link
	r.Timestamp = ts
	r.GeneratedAt = now
	r.HashInput = input
	r.Huella = digest
	r.LinkID = linkID
	r.ExternalKey = ExternalKey(l.seller, linkID)

	l.previous = l.current
	l.hasPrevious = true
	l.rolledBack = false
	l.headFreshMonth = false
	l.current = headOf(r)

	entry := EntryFor(r)
	l.unwritten = append(l.unwritten, r)
	l.log.Debug().Uint64("link_id", linkID).Str("huella", digest).Str("serie", r.ID.SeriesNumber).Msg("eslabón insertado")
	return entry, nil
}

// Write persiste los eslabones pendientes uno a uno: copia .PREV, añade la línea al
// archivo mensual y sobrescribe el archivo de estado, que siempre refleja la última
// línea escrita. Si falla, el Ledger queda marcado como inconsistente.
func (l *Ledger) Write() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fault != nil {
		return l.fault
	}
	if len(l.unwritten) == 0 {
		if err := l.writeSnapshotLocked(); err != nil {
			return l.failLocked(err)
		}
		return nil
	}
	for len(l.unwritten) > 0 {
		r := l.unwritten[0]
		fresh, err := l.appendLocked(EntryFor(r))
		if err != nil {
			return l.failLocked(err)
		}
		if err := l.files.WriteSnapshot(l.seller, headOf(r)); err != nil {
			return l.failLocked(err)
		}
		if r.LinkID == l.current.LinkID {
			l.headFreshMonth = fresh
		}
		l.unwritten = l.unwritten[1:]
	}
	l.unwritten = nil
	return nil
}

func (l *Ledger) appendLocked(e entity.ChainEntry) (fresh bool, err error) {
	period := e.Period()
	exists, err := l.files.MonthExists(l.seller, period)
	if err != nil {
		return false, err
	}
	if exists {
		if err := l.files.BackupMonth(l.seller, period); err != nil {
			return false, err
		}
	}
	if err := l.files.AppendEntry(l.seller, period, e); err != nil {
		return false, err
	}
	return !exists, nil
}

func (l *Ledger) writeSnapshotLocked() error {
	if l.current.Empty() {
		return l.files.DeleteSnapshot(l.seller)
	}
	return l.files.WriteSnapshot(l.seller, l.current)
}

func (l *Ledger) failLocked(err error) error {
	l.fault = fmt.Errorf("%w: vendedor %s: %w", domain.ErrLedgerInconsistent, l.seller, err)
	l.log.Error().Err(err).Uint64("link_id", l.current.LinkID).Msg("fallo al escribir la cadena, se requiere recarga")
	return l.fault
}

// Delete deshace el eslabón actual. record debe ser exactamente la cabeza de la cadena
// y solo se admite un paso: un segundo Delete sin Insert intermedio falla.
func (l *Ledger) Delete(record *entity.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fault != nil {
		return l.fault
	}
	if record == nil || l.current.Empty() || record.Huella == "" || record.Huella != l.current.Huella {
		return domain.ErrNotHead
	}
	if l.rolledBack {
		return domain.ErrRollbackDepth
	}
	if !l.hasPrevious {
		if l.current.LinkID > 1 {
			return fmt.Errorf("%w: eslabón %d", domain.ErrNoRollbackHistory, l.current.LinkID)
		}
		// Eslabón 1 hidratado desde disco: el anterior es la cadena vacía.
		l.previous = entity.ChainHead{}
	}

	if err := l.undoDiskLocked(); err != nil {
		return l.failLocked(err)
	}

	removed := l.current
	l.current = l.previous
	l.previous = entity.ChainHead{}
	l.hasPrevious = false
	l.rolledBack = true
	l.headFreshMonth = false
	record.ResetChain()
	l.log.Info().Uint64("link_id", removed.LinkID).Str("huella", removed.Huella).Msg("eslabón deshecho")
	return nil
}

// undoDiskLocked deja los archivos como estaban antes de escribir el eslabón actual:
//
//   - cadena vacía tras deshacer: se eliminan archivo mensual y estado
//   - el eslabón creó su archivo mensual: se elimina ese archivo
//   - resto de casos: se restaura el archivo mensual desde .PREV
func (l *Ledger) undoDiskLocked() error {
	if n := len(l.unwritten); n > 0 && l.unwritten[n-1].LinkID == l.current.LinkID {
		l.unwritten = l.unwritten[:n-1]
		return nil
	}
	period := l.current.GeneratedAt.In(l.loc).Format(entity.PeriodLayout)
	if l.current.Record != nil {
		period = EntryFor(l.current.Record).Period()
	}
	switch {
	case l.current.LinkID == 1:
		if err := l.files.DeleteMonth(l.seller, period); err != nil {
			return err
		}
		return l.files.DeleteSnapshot(l.seller)
	case l.headFreshMonth:
		if err := l.files.DeleteMonth(l.seller, period); err != nil {
			return err
		}
	default:
		if err := l.files.RestoreMonth(l.seller, period); err != nil {
			return err
		}
	}
	return l.files.WriteSnapshot(l.seller, l.previous)
}

// Reload descarta el estado en memoria y vuelve a leer el archivo de estado.
// Es la única salida de un Ledger marcado como inconsistente. Los registros que no
// llegaron a disco pierden su huella y pueden volver a encadenarse.
func (l *Ledger) Reload() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fault == nil && len(l.unwritten) > 0 {
		return fmt.Errorf("%w: vendedor %s: escritura en curso", domain.ErrUnavailable, l.seller)
	}
	for _, r := range l.unwritten {
		r.ResetChain()
	}
	if err := l.hydrate(); err != nil {
		return err
	}
	l.log.Warn().Uint64("link_id", l.current.LinkID).Msg("cadena recargada desde disco")
	return nil
}

// ExternalKey clave de correlación (RefExterna) de un eslabón.
func ExternalKey(seller string, linkID uint64) string {
	return fmt.Sprintf("%s-%010d", seller, linkID)
}

func headOf(r *entity.Record) entity.ChainHead {
	return entity.ChainHead{LinkID: r.LinkID, GeneratedAt: r.GeneratedAt, Huella: r.Huella, ID: r.ID, Record: r}
}

// EntryFor línea de control de un registro ya encadenado.
func EntryFor(r *entity.Record) entity.ChainEntry {
	return entity.ChainEntry{
		LinkID:       r.LinkID,
		Timestamp:    r.Timestamp,
		Huella:       r.Huella,
		Kind:         r.Kind,
		IssuerNIF:    r.ID.IssuerNIF,
		SeriesNumber: r.ID.SeriesNumber,
		IssueDate:    r.ID.IssueDate.Format(entity.IssueDateLayout),
		HashInput:    r.HashInput,
	}
}

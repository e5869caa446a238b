package ledger

import (
	"fmt"

	"github.com/jhoicas/verifactu/internal/domain"
	"github.com/jhoicas/verifactu/internal/domain/entity"
	"github.com/jhoicas/verifactu/internal/domain/registry"
	"github.com/jhoicas/verifactu/internal/domain/verifactu"
	"github.com/jhoicas/verifactu/pkg/logger"
)

// Registry un Ledger vivo por vendedor.
type Registry = registry.Keyed[*Ledger]

// NewRegistry registro cuyo factory crea e hidrata el Ledger del vendedor.
func NewRegistry(opts Options) *Registry {
	return registry.NewKeyed[*Ledger](func(seller string) (*Ledger, error) {
		return New(seller, opts)
	})
}

// Book acceso a las cadenas de todos los vendedores.
type Book struct {
	ledgers *Registry
	opts    Options
	log     *logger.Logger
}

// NewBook crea el libro sobre un registro ya construido.
func NewBook(ledgers *Registry, opts Options) *Book {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Book{ledgers: ledgers, opts: opts, log: log.Component("ledger")}
}

// LoadFromDisk crea un Ledger por cada directorio de vendedor bajo la raíz.
// Se llama una vez al arrancar: un vendedor ya registrado es un error de programación.
func (b *Book) LoadFromDisk() (int, error) {
	sellers, err := b.opts.Files.Sellers()
	if err != nil {
		return 0, err
	}
	for _, s := range sellers {
		l, err := b.ledgers.Create(s)
		if err != nil {
			return 0, err
		}
		b.log.Info().Str("seller", s).Uint64("link_id", l.CurrentLinkID()).Msg("cadena cargada")
	}
	return len(sellers), nil
}

// Ledger devuelve (o crea) la cadena del vendedor.
func (b *Book) Ledger(seller string) (*Ledger, error) {
	return b.ledgers.GetOrCreate(seller)
}

// Existing cadena del vendedor solo si ya está registrada.
func (b *Book) Existing(seller string) (*Ledger, bool) {
	return b.ledgers.Get(seller)
}

// Sellers vendedores con cadena registrada.
func (b *Book) Sellers() []string {
	return b.ledgers.Keys()
}

// Reload recarga desde disco la cadena de un vendedor.
func (b *Book) Reload(seller string) error {
	l, ok := b.ledgers.Get(seller)
	if !ok {
		return fmt.Errorf("%w: vendedor %s", domain.ErrNotFound, seller)
	}
	return l.Reload()
}

// Entries líneas de control de un periodo YYYYMM.
func (b *Book) Entries(seller, period string) ([]entity.ChainEntry, error) {
	ok, err := b.opts.Files.MonthExists(seller, period)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: periodo %s del vendedor %s", domain.ErrNotFound, period, seller)
	}
	return b.opts.Files.ReadMonth(seller, period)
}

// Report resultado de verificar la cadena en disco de un vendedor.
type Report struct {
	Seller     string
	Periods    []string
	Links      int
	LastLinkID uint64
	LastHuella string
	Breaks     []verifactu.ChainBreak
}

// OK la cadena en disco es íntegra.
func (r Report) OK() bool { return len(r.Breaks) == 0 }

// Verify recorre todos los archivos mensuales del vendedor en orden, recalcula cada
// huella y comprueba el enlace con la anterior y con el archivo de estado.
func (b *Book) Verify(seller string) (Report, error) {
	rep := Report{Seller: seller}
	periods, err := b.opts.Files.Periods(seller)
	if err != nil {
		return rep, err
	}
	rep.Periods = periods
	prev := ""
	for _, p := range periods {
		entries, err := b.opts.Files.ReadMonth(seller, p)
		if err != nil {
			return rep, err
		}
		if len(entries) > 0 {
			switch {
			case rep.Links == 0 && entries[0].LinkID != 1:
				rep.Breaks = append(rep.Breaks, verifactu.ChainBreak{LinkID: entries[0].LinkID, Reason: "la cadena no empieza en el eslabón 1"})
			case rep.Links > 0 && entries[0].LinkID != rep.LastLinkID+1:
				rep.Breaks = append(rep.Breaks, verifactu.ChainBreak{LinkID: entries[0].LinkID, Reason: "numeración discontinua entre periodos"})
			}
		}
		var breaks []verifactu.ChainBreak
		prev, breaks = verifactu.VerifyEntries(b.opts.Hasher, prev, entries)
		rep.Breaks = append(rep.Breaks, breaks...)
		rep.Links += len(entries)
		if len(entries) > 0 {
			rep.LastLinkID = entries[len(entries)-1].LinkID
		}
	}
	rep.LastHuella = prev

	head, ok, err := b.opts.Files.ReadSnapshot(seller)
	if err != nil {
		return rep, err
	}
	switch {
	case !ok && rep.Links > 0:
		rep.Breaks = append(rep.Breaks, verifactu.ChainBreak{LinkID: rep.LastLinkID, Reason: "falta el archivo de estado"})
	case ok && (head.LinkID != rep.LastLinkID || head.Huella != rep.LastHuella):
		rep.Breaks = append(rep.Breaks, verifactu.ChainBreak{LinkID: head.LinkID, Reason: "el archivo de estado no coincide con el último eslabón"})
	}
	return rep, nil
}

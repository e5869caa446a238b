package repository

import (
	"context"

	"github.com/jhoicas/verifactu/internal/domain/entity"
)

// EventRepository define el puerto de persistencia del estado de los eventos de envío.
// El registro se guarda resumido (identidad, huella, posición en la cadena).
type EventRepository interface {
	// Save inserta o actualiza el evento por ID.
	Save(ctx context.Context, event *entity.PendingEvent) error
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.PendingEvent, error)
	ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]*entity.PendingEvent, error)
}

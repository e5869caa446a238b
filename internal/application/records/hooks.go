package records

import (
	"context"
	"time"

	"github.com/jhoicas/verifactu/internal/application/dispatch"
	"github.com/jhoicas/verifactu/internal/domain/entity"
	"github.com/jhoicas/verifactu/internal/domain/repository"
	"github.com/jhoicas/verifactu/pkg/logger"
)

const saveTimeout = 10 * time.Second

// PersistHooks guarda el resultado de cada remisión. Con tx la remisión entera se guarda
// en una transacción; si no, evento a evento con repo. Ambos nil solo deja trazas.
func PersistHooks(repo repository.EventRepository, tx TxRunner, log *logger.Logger) dispatch.Hooks {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("records")
	save := func(events []*entity.PendingEvent) {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		switch {
		case tx != nil:
			err := tx.Run(ctx, func(store repository.EventRepository) error {
				for _, ev := range events {
					if err := store.Save(ctx, ev); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				log.Error().Err(err).Int("events", len(events)).Msg("no se pudo guardar el resultado de la remisión")
			}
		case repo != nil:
			for _, ev := range events {
				if err := repo.Save(ctx, ev); err != nil {
					log.Error().Err(err).Str("event_id", ev.ID).Msg("no se pudo guardar el resultado del evento")
				}
			}
		}
	}
	return dispatch.Hooks{
		OnBatchSent: func(events []*entity.PendingEvent, resp *dispatch.Response) {
			log.Info().Int("events", len(events)).Str("csv", resp.CSV).Str("estado", resp.Status).Msg("resultado de la remisión")
			save(events)
		},
		OnBatchFailed: func(events []*entity.PendingEvent, err error) {
			log.Warn().Err(err).Int("events", len(events)).Msg("remisión fallida, eventos disponibles para reenvío")
			save(events)
		},
	}
}

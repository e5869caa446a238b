package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/verifactu/internal/application/dispatch"
	"github.com/jhoicas/verifactu/internal/application/ledger"
	"github.com/jhoicas/verifactu/internal/application/records"
	"github.com/jhoicas/verifactu/internal/domain/repository"
	"github.com/jhoicas/verifactu/internal/domain/verifactu"
	"github.com/jhoicas/verifactu/internal/infrastructure/aeat"
	"github.com/jhoicas/verifactu/internal/infrastructure/filestore"
	infrapdf "github.com/jhoicas/verifactu/internal/infrastructure/pdf"
	"github.com/jhoicas/verifactu/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/verifactu/internal/interfaces/http"
	"github.com/jhoicas/verifactu/pkg/config"
	"github.com/jhoicas/verifactu/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("configuración")
	}
	vf := cfg.Verifactu
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("aeat", vf.Env).
		Str("ledger_root", vf.LedgerRoot).
		Msg("iniciando aplicación")

	// Huella: un algoritmo o codificación no soportados impiden arrancar.
	hasher, err := verifactu.NewHasher(vf.HashAlgorithm, vf.HashEncoding)
	if err != nil {
		log.Fatal().Err(err).Msg("calculador de huella")
	}
	loc, err := vf.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("zona horaria")
	}

	files, err := filestore.NewLedgerFiles(vf.LedgerRoot, loc)
	if err != nil {
		log.Fatal().Err(err).Msg("directorio de la cadena")
	}
	ledgerOpts := ledger.Options{Files: files, Hasher: hasher, Location: loc, Logger: log}
	book := ledger.NewBook(ledger.NewRegistry(ledgerOpts), ledgerOpts)
	n, err := book.LoadFromDisk()
	if err != nil {
		log.Fatal().Err(err).Msg("cargar cadenas desde disco")
	}
	log.Info().Int("sellers", n).Msg("cadenas cargadas")

	ctx := context.Background()

	// PostgreSQL opcional: histórico de eventos.
	var (
		events repository.EventRepository
		txRun  records.TxRunner
	)
	if cfg.DB.Enabled {
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("esquema de eventos")
		}
		events = postgres.NewEventRepository(pool)
		txRun = postgres.NewTxRunner(pool)
	}

	// Transporte AEAT: simulado en dev, SOAP con certificado en test y prod.
	var transport dispatch.Transport
	if vf.Env == aeat.EnvDev {
		transport = aeat.NewDevClient()
	} else {
		cert, err := aeat.LoadCertificate(vf.CertPath, vf.CertKeyPath, vf.CertPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("certificado de la AEAT")
		}
		if info, err := aeat.Describe(*cert); err == nil {
			if info.Expired(time.Now()) {
				log.Fatal().Time("not_after", info.NotAfter).Msg("certificado caducado")
			}
			log.Info().Str("subject", info.Subject).Time("not_after", info.NotAfter).Msg("certificado cargado")
		}
		client, err := aeat.NewSOAPClient(aeat.URLFor(vf.Env), cert, 30*time.Second)
		if err != nil {
			log.Fatal().Err(err).Msg("cliente SOAP")
		}
		transport = client
	}

	var audit dispatch.AuditSink
	if vf.AuditEnabled {
		audit = filestore.NewAuditStore(files, nil)
	}

	codec := aeat.NewXMLCodec(aeat.SystemInfo{
		NIF:                vf.System.NIF,
		Name:               vf.System.Name,
		SystemName:         vf.System.SystemName,
		SystemID:           vf.System.SystemID,
		Version:            vf.System.Version,
		InstallationNumber: vf.System.InstallationNumber,
	})
	queues := dispatch.NewQueues(dispatch.QueueOptions{
		Chain: func(seller string) (dispatch.Chain, error) {
			return book.Ledger(seller)
		},
		Sender:      dispatch.NewSender(codec, transport, audit, log),
		Validator:   verifactu.NewRecordValidator(),
		DefaultWait: time.Duration(vf.DefaultWaitSeconds) * time.Second,
		MaxBatch:    vf.MaxBatch,
		Logger:      log,
	})
	dispatcher := dispatch.NewDispatcher(queues, records.PersistHooks(events, txRun, log), time.Duration(vf.TickSeconds)*time.Second, log)
	dispatcher.Start(ctx)

	recordsUC := records.NewUseCase(records.Options{
		Book:       book,
		Dispatcher: dispatcher,
		Events:     events,
		Reports:    infrapdf.NewMarotoLedgerReport(loc),
		Logger:     log,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "VERI*FACTU API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": cfg.App.Name,
			"aeat":    vf.Env,
			"pending": dispatcher.Pending(),
		})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		RecordsUC: recordsUC,
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Int("pending", dispatcher.Pending()).Msg("señal de apagado recibida, vaciando colas...")

	// Las colas se vacían antes de cerrar HTTP: las consultas de estado siguen disponibles.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelDrain()
	if err := dispatcher.RequestShutdown(drainCtx); err != nil {
		log.Error().Err(err).Int("pending", dispatcher.Pending()).Msg("apagado con eventos pendientes")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/comprobantes-sri/internal/application/issuance"
	"github.com/jhoicas/comprobantes-sri/internal/domain/entity"
	"github.com/jhoicas/comprobantes-sri/internal/domain/repository"
	infradynamo "github.com/jhoicas/comprobantes-sri/internal/infrastructure/dynamodb"
	"github.com/jhoicas/comprobantes-sri/internal/infrastructure/memory"
	infrapdf "github.com/jhoicas/comprobantes-sri/internal/infrastructure/pdf"
	"github.com/jhoicas/comprobantes-sri/internal/infrastructure/postgres"
	"github.com/jhoicas/comprobantes-sri/internal/infrastructure/sri"
	"github.com/jhoicas/comprobantes-sri/internal/infrastructure/sri/signer"
	httpRouter "github.com/jhoicas/comprobantes-sri/internal/interfaces/http"
	"github.com/jhoicas/comprobantes-sri/pkg/config"
	"github.com/jhoicas/comprobantes-sri/pkg/logger"
)

// stores adaptadores de persistencia elegidos por STORE_BACKEND.
type stores struct {
	docs    repository.IssuedDocumentRepository
	certs   repository.DigitalCertRepository
	addCert func(ctx context.Context, cert *entity.DigitalCert) error
	close   func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.Store.Backend).
		Msg("iniciando aplicación")

	ctx := context.Background()
	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Store.Backend).Msg("inicializar almacenamiento")
	}
	defer st.close()

	if cfg.SRI.DevCertPath != "" {
		if err := seedDevCert(ctx, cfg.SRI, st.addCert); err != nil {
			log.Fatal().Err(err).Msg("registrar certificado de desarrollo")
		}
		log.Warn().Str("ruc", cfg.SRI.DevCertOwner).Msg("certificado de desarrollo registrado")
	}

	alg, err := signer.ParseAlgorithm(cfg.SRI.SignatureAlgorithm)
	if err != nil {
		log.Fatal().Err(err).Msg("algoritmo de firma")
	}
	signerSvc := signer.NewDigitalSignatureService(signer.WithAlgorithm(alg))

	pipeline := issuance.NewPipeline(
		sri.NewXMLBuilderService(), st.certs, signer.DecodeCertificate,
		signerSvc, st.docs, log.Zerolog(),
	)
	lifecycle := issuance.NewLifecycleService(st.docs, infrapdf.NewRIDEGenerator(), log.Zerolog())

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())
	app.Use(httpRouter.RequestLogger(log.Component("http")))

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Comprobantes SRI API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "store": cfg.Store.Backend})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Pipeline:  pipeline,
		Lifecycle: lifecycle,
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

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		certs := postgres.NewDigitalCertRepository(pool)
		return &stores{
			docs:    postgres.NewIssuedDocumentRepository(pool),
			certs:   certs,
			addCert: certs.Add,
			close:   pool.Close,
		}, nil
	case config.StoreDynamoDB:
		client, err := infradynamo.NewClient(ctx, cfg.DynamoDB)
		if err != nil {
			return nil, err
		}
		certs := infradynamo.NewDigitalCertRepository(client, cfg.DynamoDB.Table)
		return &stores{
			docs:    infradynamo.NewIssuedDocumentRepository(client, cfg.DynamoDB.Table),
			certs:   certs,
			addCert: certs.Add,
			close:   func() {},
		}, nil
	default:
		certs := memory.NewDigitalCertRepository()
		return &stores{
			docs:  memory.NewIssuedDocumentRepository(),
			certs: certs,
			addCert: func(_ context.Context, cert *entity.DigitalCert) error {
				certs.Add(cert)
				return nil
			},
			close: func() {},
		}, nil
	}
}

// seedDevCert valida el .p12 de desarrollo antes de registrarlo para su RUC.
func seedDevCert(ctx context.Context, cfg config.SRIConfig, add func(context.Context, *entity.DigitalCert) error) error {
	if cfg.DevCertOwner == "" {
		return fmt.Errorf("SRI_DEV_CERT_OWNER requerido junto con SRI_DEV_CERT_PATH")
	}
	material, err := os.ReadFile(cfg.DevCertPath)
	if err != nil {
		return fmt.Errorf("leer certificado: %w", err)
	}
	if _, err := signer.DecodeCertificate(material, cfg.DevCertPassword); err != nil {
		return err
	}
	return add(ctx, &entity.DigitalCert{
		Owner:    cfg.DevCertOwner,
		Material: material,
		Password: cfg.DevCertPassword,
	})
}

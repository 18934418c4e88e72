package issuance

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jhoicas/comprobantes-sri/internal/domain"
	"github.com/jhoicas/comprobantes-sri/internal/domain/entity"
	"github.com/jhoicas/comprobantes-sri/internal/domain/repository"
	dsri "github.com/jhoicas/comprobantes-sri/internal/domain/sri"
	"github.com/jhoicas/comprobantes-sri/internal/infrastructure/sri/signer"
)

// LifecycleService operaciones sobre comprobantes ya emitidos. Ninguna vuelve a
// generar el XML: siempre se usa el contenido firmado que quedó persistido.
type LifecycleService struct {
	store  repository.IssuedDocumentRepository
	ride   RIDERenderer
	verify SignatureVerifier
	log    zerolog.Logger
}

// NewLifecycleService construye el servicio. ride puede ser nil si no se generan PDF.
func NewLifecycleService(store repository.IssuedDocumentRepository, ride RIDERenderer, log zerolog.Logger) *LifecycleService {
	return &LifecycleService{
		store:  store,
		ride:   ride,
		verify: signer.Verify,
		log:    log.With().Str("component", "lifecycle").Logger(),
	}
}

// GetByAccessKey devuelve el registro activo; ErrNotFound si no existe o fue eliminado.
func (s *LifecycleService) GetByAccessKey(ctx context.Context, accessKey string) (*entity.IssuedDocument, error) {
	if err := checkKey(accessKey); err != nil {
		return nil, err
	}
	doc, err := s.store.FindActiveByKey(ctx, accessKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("comprobante %s: %w", accessKey, domain.ErrNotFound)
	}
	return doc, nil
}

// GetXML devuelve el XML firmado exactamente como se persistió.
func (s *LifecycleService) GetXML(ctx context.Context, accessKey string) ([]byte, error) {
	doc, err := s.GetByAccessKey(ctx, accessKey)
	if err != nil {
		return nil, err
	}
	return []byte(doc.XMLContent), nil
}

// SoftDelete marca el comprobante como eliminado. Una segunda llamada devuelve ErrNotFound.
func (s *LifecycleService) SoftDelete(ctx context.Context, accessKey string) error {
	doc, err := s.GetByAccessKey(ctx, accessKey)
	if err != nil {
		return err
	}
	if err := s.store.MarkDeleted(ctx, doc); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	s.log.Info().Str("access_key", accessKey).Str("ruc", doc.SupplierID).Msg("comprobante eliminado")
	return nil
}

// ListActiveBySupplier claves activas del emisor en orden de creación. Sin comprobantes devuelve lista vacía.
func (s *LifecycleService) ListActiveBySupplier(ctx context.Context, supplierID string) ([]string, error) {
	keys, err := s.store.FindActiveBySupplier(ctx, supplierID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

// RenderRIDE genera el PDF del comprobante activo a partir del XML firmado.
func (s *LifecycleService) RenderRIDE(ctx context.Context, accessKey string) ([]byte, error) {
	if s.ride == nil {
		return nil, fmt.Errorf("generador de RIDE no configurado")
	}
	doc, err := s.GetByAccessKey(ctx, accessKey)
	if err != nil {
		return nil, err
	}
	return s.ride.Render(doc)
}

// Verify comprueba la firma del XML persistido.
func (s *LifecycleService) Verify(ctx context.Context, accessKey string) (*signer.VerifyResult, error) {
	doc, err := s.GetByAccessKey(ctx, accessKey)
	if err != nil {
		return nil, err
	}
	return s.verify([]byte(doc.XMLContent))
}

// checkKey rechaza claves mal formadas o con dígito verificador incorrecto.
func checkKey(accessKey string) error {
	ok, err := dsri.ValidateAccessKey(accessKey)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: dígito verificador incorrecto en %s", domain.ErrInvalidAccessKey, accessKey)
	}
	return nil
}

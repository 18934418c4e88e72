// Package issuance orquesta la emisión de comprobantes electrónicos:
//
//	BUILT → SERIALIZED → SIGNED → PERSISTED   (o FAILED en cualquier paso)
//
// La clave de acceso sólo se devuelve cuando el registro quedó persistido.
package issuance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/comprobantes-sri/internal/domain"
	"github.com/jhoicas/comprobantes-sri/internal/domain/entity"
	"github.com/jhoicas/comprobantes-sri/internal/domain/repository"
	dsri "github.com/jhoicas/comprobantes-sri/internal/domain/sri"
	"github.com/jhoicas/comprobantes-sri/pkg/sri"
)

// Pipeline no guarda estado entre emisiones; es seguro para uso concurrente.
// La unicidad de la clave activa la garantiza el repositorio.
type Pipeline struct {
	serializer Serializer
	certs      repository.DigitalCertRepository
	decode     CertificateDecoder
	signer     sri.Signer
	store      repository.IssuedDocumentRepository
	log        zerolog.Logger
	now        func() time.Time
}

// NewPipeline construye el pipeline con todas sus dependencias.
func NewPipeline(
	serializer Serializer,
	certs repository.DigitalCertRepository,
	decode CertificateDecoder,
	signer sri.Signer,
	store repository.IssuedDocumentRepository,
	log zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		serializer: serializer,
		certs:      certs,
		decode:     decode,
		signer:     signer,
		store:      store,
		log:        log.With().Str("component", "issuance").Logger(),
		now:        time.Now,
	}
}

// Issue serializa, firma y persiste el comprobante. Si ClaveAcceso viene vacía se
// deriva de los datos del comprobante y queda asignada en doc sólo si la emisión
// termina en PERSISTED; si viene, se valida. Cualquier falla se devuelve como *Error,
// nada queda persistido y doc conserva su ClaveAcceso original.
// Una falla al consultar certificados es ErrPersistence (reintentable).
func (p *Pipeline) Issue(ctx context.Context, doc entity.Comprobante) (string, error) {
	if doc == nil || doc.Info() == nil {
		return "", &Error{State: StateBuilt, Err: fmt.Errorf("%w: comprobante vacío", domain.ErrSerialization)}
	}
	info := doc.Info()
	ruc := doc.SupplierID()

	// BUILT: resolver clave de acceso
	key, err := resolveAccessKey(doc)
	if err != nil {
		return "", p.fail(StateBuilt, info.ClaveAcceso, ruc, err)
	}
	// El serializador lee la clave del comprobante; si la emisión falla se restaura la original.
	original := info.ClaveAcceso
	info.ClaveAcceso = key
	persisted := false
	defer func() {
		if !persisted {
			info.ClaveAcceso = original
		}
	}()
	logger := p.log.With().Str("access_key", key).Str("ruc", ruc).Str("cod_doc", doc.DocumentType()).Logger()
	logger.Debug().Str("state", string(StateBuilt)).Msg("comprobante construido")

	// SERIALIZED
	unsigned, err := p.serializer.Build(doc)
	if err != nil {
		return "", p.fail(StateBuilt, key, ruc, err)
	}
	logger.Debug().Str("state", string(StateSerialized)).Int("bytes", len(unsigned)).Msg("comprobante serializado")

	// SIGNED
	certs, err := p.certs.FindByOwner(ctx, ruc)
	if err != nil {
		return "", p.fail(StateSerialized, key, ruc, fmt.Errorf("%w: consultar certificados: %v", domain.ErrPersistence, err))
	}
	if len(certs) == 0 {
		return "", p.fail(StateSerialized, key, ruc, fmt.Errorf("%w: %s", domain.ErrCertificateNotFound, ruc))
	}
	cert, err := p.decode(certs[0].Material, certs[0].Password)
	if err != nil {
		return "", p.fail(StateSerialized, key, ruc, wrapSigning(err))
	}
	signed, err := p.signer.Sign(unsigned, cert)
	if err != nil {
		return "", p.fail(StateSerialized, key, ruc, wrapSigning(err))
	}
	logger.Debug().Str("state", string(StateSigned)).Str("cert_id", certs[0].ID).Msg("comprobante firmado")

	// PERSISTED
	record := newRecord(doc, signed, p.now())
	if err := p.store.Save(ctx, record); err != nil {
		return "", p.fail(StateSigned, key, ruc, fmt.Errorf("%w: %w", domain.ErrPersistence, err))
	}
	persisted = true
	logger.Info().Str("state", string(StatePersisted)).Str("id", record.ID).Msg("comprobante emitido")
	return key, nil
}

func (p *Pipeline) fail(state State, key, ruc string, err error) error {
	p.log.Warn().
		Str("access_key", key).
		Str("ruc", ruc).
		Str("state", string(StateFailed)).
		Str("last_state", string(state)).
		Err(err).
		Msg("emisión fallida")
	return &Error{State: state, AccessKey: key, RUC: ruc, Err: err}
}

// resolveAccessKey deriva la clave cuando falta y valida la recibida.
func resolveAccessKey(doc entity.Comprobante) (string, error) {
	info := doc.Info()
	if info.ClaveAcceso == "" {
		return dsri.BuildAccessKey(dsri.AccessKeyFields{
			IssueDate:     doc.AccessKeyDate(),
			DocumentType:  doc.DocumentType(),
			RUC:           info.RUC,
			Environment:   info.Ambiente,
			Establishment: info.Estab,
			EmissionPoint: info.PtoEmi,
			Sequential:    info.Secuencial,
			NumericCode:   info.CodigoNumerico,
			EmissionType:  info.TipoEmision,
		})
	}
	fields, err := dsri.ParseAccessKey(info.ClaveAcceso)
	if err != nil {
		return "", err
	}
	if fields.DocumentType != doc.DocumentType() || fields.RUC != info.RUC {
		return "", fmt.Errorf("%w: la clave %s no corresponde al tipo %s del emisor %s",
			domain.ErrInvalidAccessKey, info.ClaveAcceso, doc.DocumentType(), info.RUC)
	}
	return info.ClaveAcceso, nil
}

func wrapSigning(err error) error {
	if errors.Is(err, domain.ErrSigning) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrSigning, err)
}

// newRecord arma el registro persistido; el XML firmado se guarda tal cual.
func newRecord(doc entity.Comprobante, signed []byte, now time.Time) *entity.IssuedDocument {
	info := doc.Info()
	rec := &entity.IssuedDocument{
		AccessKey:      info.ClaveAcceso,
		DocumentType:   doc.DocumentType(),
		SRIVersion:     doc.SchemaVersion(),
		XMLContent:     string(signed),
		SupplierID:     doc.SupplierID(),
		DocumentNumber: info.DocumentNumber(),
		IssueDate:      doc.AccessKeyDate(),
		InternalStatus: entity.StatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	switch d := doc.(type) {
	case *entity.GuiaRemision:
		rec.ShipperRUC = d.RUCTransportista
		rec.RegistrationNumber = d.Placa
		rec.Consignees = make([]entity.Consignee, 0, len(d.Destinatarios))
		for _, dest := range d.Destinatarios {
			rec.Consignees = append(rec.Consignees, entity.Consignee{
				ConsigneeNumber:        dest.IdentificacionDestinatario,
				CustomDocNumber:        dest.DocAduaneroUnico,
				ReferenceDocCod:        dest.CodDocSustento,
				ReferenceDocNumber:     dest.NumDocSustento,
				ReferenceDocAuthNumber: dest.NumAutDocSustento,
			})
		}
	case *entity.Factura:
		rec.BuyerID = d.InfoFactura.IdentificacionComprador
		rec.TotalAmount = d.InfoFactura.ImporteTotal
	}
	return rec
}

package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/comprobantes-sri/internal/application/dto"
	"github.com/jhoicas/comprobantes-sri/internal/application/issuance"
	"github.com/jhoicas/comprobantes-sri/internal/domain"
	"github.com/jhoicas/comprobantes-sri/internal/domain/entity"
)

// DocumentHandler emisión y ciclo de vida de comprobantes (protegido).
// Todas las operaciones quedan limitadas al RUC del token.
type DocumentHandler struct {
	pipeline  *issuance.Pipeline
	lifecycle *issuance.LifecycleService
}

// NewDocumentHandler construye el handler.
func NewDocumentHandler(pipeline *issuance.Pipeline, lifecycle *issuance.LifecycleService) *DocumentHandler {
	return &DocumentHandler{pipeline: pipeline, lifecycle: lifecycle}
}

// CreateGuiaRemision emite una guía de remisión.
// POST /api/v1/guias-remision
func (h *DocumentHandler) CreateGuiaRemision(c *fiber.Ctx) error {
	var in dto.CreateGuiaRemisionRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	guia, err := in.ToEntity()
	if err != nil {
		return writeError(c, err)
	}
	return h.issue(c, guia)
}

// CreateFactura emite una factura.
// POST /api/v1/facturas
func (h *DocumentHandler) CreateFactura(c *fiber.Ctx) error {
	var in dto.CreateFacturaRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	factura, err := in.ToEntity()
	if err != nil {
		return writeError(c, err)
	}
	return h.issue(c, factura)
}

func (h *DocumentHandler) issue(c *fiber.Ctx, doc entity.Comprobante) error {
	if doc.SupplierID() != GetRUC(c) {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "el RUC emisor no corresponde al token"})
	}
	key, err := h.pipeline.Issue(c.UserContext(), doc)
	if err != nil {
		return writeError(c, err)
	}
	c.Location("/api/v1/comprobantes/" + key)
	return c.Status(fiber.StatusCreated).JSON(dto.IssueResponse{ClaveAcceso: key})
}

// owned obtiene el registro activo y comprueba que pertenezca al emisor del token.
func (h *DocumentHandler) owned(c *fiber.Ctx) (*entity.IssuedDocument, error) {
	doc, err := h.lifecycle.GetByAccessKey(c.UserContext(), c.Params("claveAcceso"))
	if err != nil {
		return nil, err
	}
	if doc.SupplierID != GetRUC(c) {
		return nil, domain.ErrForbidden
	}
	return doc, nil
}

// GetXML devuelve el XML firmado tal como se persistió.
// GET /api/v1/comprobantes/:claveAcceso
func (h *DocumentHandler) GetXML(c *fiber.Ctx) error {
	doc, err := h.owned(c)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/xml; charset=utf-8")
	return c.SendString(doc.XMLContent)
}

// GetRIDE devuelve el PDF del comprobante.
// GET /api/v1/comprobantes/:claveAcceso/ride
func (h *DocumentHandler) GetRIDE(c *fiber.Ctx) error {
	doc, err := h.owned(c)
	if err != nil {
		return writeError(c, err)
	}
	pdf, err := h.lifecycle.RenderRIDE(c.UserContext(), doc.AccessKey)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+doc.AccessKey+`.pdf"`)
	return c.Send(pdf)
}

// Verify recalcula la firma del XML persistido. Una firma inválida no es un
// error HTTP: se informa con valid=false.
// GET /api/v1/comprobantes/:claveAcceso/verify
func (h *DocumentHandler) Verify(c *fiber.Ctx) error {
	doc, err := h.owned(c)
	if err != nil {
		return writeError(c, err)
	}
	res, err := h.lifecycle.Verify(c.UserContext(), doc.AccessKey)
	if errors.Is(err, domain.ErrInvalidSignature) {
		return c.JSON(dto.VerifyResponse{Valid: false})
	}
	if err != nil {
		return writeError(c, err)
	}
	out := dto.VerifyResponse{Valid: true, Algorithm: res.Algorithm, SigningTime: res.SigningTime}
	if res.Certificate != nil {
		out.Certificate = res.Certificate.Subject.String()
		out.SerialNumber = res.Certificate.SerialNumber.String()
	}
	return c.JSON(out)
}

// Delete marca el comprobante como eliminado.
// DELETE /api/v1/comprobantes/:claveAcceso
func (h *DocumentHandler) Delete(c *fiber.Ctx) error {
	doc, err := h.owned(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.lifecycle.SoftDelete(c.UserContext(), doc.AccessKey); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListBySupplier lista las claves activas del emisor.
// GET /api/v1/emisores/:ruc/comprobantes
func (h *DocumentHandler) ListBySupplier(c *fiber.Ctx) error {
	ruc := c.Params("ruc")
	if ruc != GetRUC(c) {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado a comprobantes de otro emisor"})
	}
	keys, err := h.lifecycle.ListActiveBySupplier(c.UserContext(), ruc)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ComprobanteListResponse{RUC: ruc, Comprobantes: keys})
}

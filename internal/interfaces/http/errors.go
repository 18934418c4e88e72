package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/comprobantes-sri/internal/application/dto"
	"github.com/jhoicas/comprobantes-sri/internal/application/issuance"
	"github.com/jhoicas/comprobantes-sri/internal/domain"
)

// errorStatus traduce errores de dominio a status + código. El orden importa:
// un fallo de persistencia por clave duplicada también es ErrPersistence.
var errorStatus = []struct {
	target error
	status int
	code   string
}{
	{domain.ErrDuplicate, fiber.StatusConflict, "DUPLICATE"},
	{domain.ErrInvalidAccessKey, fiber.StatusBadRequest, "INVALID_ACCESS_KEY"},
	{domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION"},
	{domain.ErrSerialization, fiber.StatusUnprocessableEntity, "SERIALIZATION"},
	{domain.ErrCertificateNotFound, fiber.StatusNotFound, "CERTIFICATE_NOT_FOUND"},
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{domain.ErrSigning, fiber.StatusUnprocessableEntity, "SIGNING"},
	{domain.ErrPersistence, fiber.StatusServiceUnavailable, "PERSISTENCE"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
}

// writeError responde con dto.ErrorResponse. Los errores del pipeline incluyen
// el último estado alcanzado.
func writeError(c *fiber.Ctx, err error) error {
	status, code := fiber.StatusInternalServerError, "INTERNAL"
	for _, e := range errorStatus {
		if errors.Is(err, e.target) {
			status, code = e.status, e.code
			break
		}
	}
	resp := dto.ErrorResponse{Code: code, Message: err.Error()}
	var pipeErr *issuance.Error
	if errors.As(err, &pipeErr) {
		resp.State = string(pipeErr.State)
	}
	return c.Status(status).JSON(resp)
}

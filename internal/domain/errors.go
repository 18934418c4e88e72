package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrForbidden    = errors.New("acceso denegado")

	// Emisión de comprobantes electrónicos.
	ErrSerialization       = errors.New("comprobante incompleto o no serializable")
	ErrCertificateNotFound = errors.New("no existe certificado digital para el emisor")
	ErrSigning             = errors.New("error al firmar el comprobante")
	ErrPersistence         = errors.New("error al persistir el comprobante")
	ErrInvalidAccessKey    = errors.New("formato de clave de acceso inválido")
	ErrInvalidSignature    = errors.New("firma digital inválida")
)

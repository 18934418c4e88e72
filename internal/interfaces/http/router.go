package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/comprobantes-sri/internal/application/issuance"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Pipeline  *issuance.Pipeline
	Lifecycle *issuance.LifecycleService
	JWTSecret string
}

// Router registra las rutas de la API. Todas requieren Bearer Token con claim ruc.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api/v1", AuthMiddleware(deps.JWTSecret))
	h := NewDocumentHandler(deps.Pipeline, deps.Lifecycle)

	api.Post("/guias-remision", h.CreateGuiaRemision)
	api.Post("/facturas", h.CreateFactura)

	docs := api.Group("/comprobantes")
	docs.Get("/:claveAcceso", h.GetXML)
	docs.Get("/:claveAcceso/ride", h.GetRIDE)
	docs.Get("/:claveAcceso/verify", h.Verify)
	docs.Delete("/:claveAcceso", h.Delete)

	api.Get("/emisores/:ruc/comprobantes", h.ListBySupplier)
}

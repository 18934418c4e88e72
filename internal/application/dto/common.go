package dto

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	State   string `json:"state,omitempty"` // último estado del pipeline de emisión
}

package issuance

import "fmt"

// State estado de un comprobante dentro del pipeline de emisión.
type State string

const (
	StateBuilt      State = "BUILT"
	StateSerialized State = "SERIALIZED"
	StateSigned     State = "SIGNED"
	StatePersisted  State = "PERSISTED"
	StateFailed     State = "FAILED"
)

// Error falla de emisión. State es el último estado alcanzado antes de pasar a FAILED;
// Err envuelve el error de dominio (domain.ErrSerialization, domain.ErrSigning, ...).
type Error struct {
	State     State
	AccessKey string
	RUC       string
	Err       error
}

func (e *Error) Error() string {
	if e.AccessKey == "" {
		return fmt.Sprintf("emisión [%s → %s] emisor %s: %v", e.State, StateFailed, e.RUC, e.Err)
	}
	return fmt.Sprintf("emisión %s [%s → %s]: %v", e.AccessKey, e.State, StateFailed, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

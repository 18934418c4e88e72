package entity

import "time"

// DigitalCert certificado de firma electrónica de un contribuyente.
// Material contiene el archivo .p12 (o PEM cert+llave en desarrollo).
type DigitalCert struct {
	ID        string
	Owner     string // RUC del titular
	Material  []byte
	Password  string
	CreatedAt time.Time
}

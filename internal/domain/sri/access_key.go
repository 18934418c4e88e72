// Package sri: clave de acceso de comprobantes electrónicos (Ficha Técnica SRI).
// 49 dígitos con posiciones fijas y dígito verificador módulo 11.

package sri

import (
	"fmt"
	"time"

	"github.com/jhoicas/comprobantes-sri/internal/domain"
)

// Longitudes de la clave de acceso.
const (
	AccessKeyLength = 49
	AccessKeyPrefix = 48 // dígitos cubiertos por el dígito verificador
)

// Estructura de la clave (posiciones 1-based, inclusivas):
//
//	1-8   fecha de emisión ddmmaaaa
//	9-10  tipo de comprobante
//	11-23 RUC del emisor
//	24    ambiente
//	25-27 establecimiento
//	28-30 punto de emisión
//	31-39 secuencial
//	40-47 código numérico
//	48    tipo de emisión
//	49    dígito verificador
var accessKeyLayout = []struct {
	name  string
	width int
}{
	{"fechaEmision", 8},
	{"codDoc", 2},
	{"ruc", 13},
	{"ambiente", 1},
	{"estab", 3},
	{"ptoEmi", 3},
	{"secuencial", 9},
	{"codigoNumerico", 8},
	{"tipoEmision", 1},
}

// AccessKeyFields campos que componen la clave de acceso.
type AccessKeyFields struct {
	IssueDate     time.Time
	DocumentType  string
	RUC           string
	Environment   string
	Establishment string
	EmissionPoint string
	Sequential    string
	NumericCode   string
	EmissionType  string
}

// ComputeCheckDigit calcula el dígito verificador módulo 11 sobre los 48 primeros dígitos.
// Pesos 2..7 cíclicos de derecha a izquierda; 11 → 0 y 10 → 1.
func ComputeCheckDigit(first48 string) (int, error) {
	if len(first48) != AccessKeyPrefix || !isDigits(first48) {
		return 0, fmt.Errorf("%w: se esperaban %d dígitos, se recibió %q", domain.ErrInvalidAccessKey, AccessKeyPrefix, first48)
	}
	sum := 0
	weight := 2
	for i := len(first48) - 1; i >= 0; i-- {
		sum += int(first48[i]-'0') * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}
	digit := 11 - sum%11
	switch digit {
	case 11:
		return 0, nil
	case 10:
		return 1, nil
	}
	return digit, nil
}

// ValidateAccessKey recalcula el dígito verificador y lo compara con la posición 49.
// Devuelve ErrInvalidAccessKey si la clave no tiene 49 dígitos numéricos.
func ValidateAccessKey(key string) (bool, error) {
	if len(key) != AccessKeyLength || !isDigits(key) {
		return false, fmt.Errorf("%w: se esperaban %d dígitos, se recibió %q", domain.ErrInvalidAccessKey, AccessKeyLength, key)
	}
	digit, err := ComputeCheckDigit(key[:AccessKeyPrefix])
	if err != nil {
		return false, err
	}
	return int(key[AccessKeyPrefix]-'0') == digit, nil
}

// BuildAccessKey arma la clave de acceso a partir de sus campos y agrega el dígito verificador.
func BuildAccessKey(f AccessKeyFields) (string, error) {
	if f.IssueDate.IsZero() {
		return "", fmt.Errorf("%w: fecha de emisión obligatoria", domain.ErrInvalidAccessKey)
	}
	values := []string{
		f.IssueDate.Format("02012006"),
		f.DocumentType,
		f.RUC,
		f.Environment,
		f.Establishment,
		f.EmissionPoint,
		f.Sequential,
		f.NumericCode,
		f.EmissionType,
	}
	buf := make([]byte, 0, AccessKeyLength)
	for i, v := range values {
		part := accessKeyLayout[i]
		if len(v) != part.width || !isDigits(v) {
			return "", fmt.Errorf("%w: %s debe tener %d dígitos, se recibió %q", domain.ErrInvalidAccessKey, part.name, part.width, v)
		}
		buf = append(buf, v...)
	}
	digit, err := ComputeCheckDigit(string(buf))
	if err != nil {
		return "", err
	}
	buf = append(buf, byte('0'+digit))
	return string(buf), nil
}

// ParseAccessKey descompone una clave válida en sus campos.
func ParseAccessKey(key string) (AccessKeyFields, error) {
	ok, err := ValidateAccessKey(key)
	if err != nil {
		return AccessKeyFields{}, err
	}
	if !ok {
		return AccessKeyFields{}, fmt.Errorf("%w: dígito verificador incorrecto en %s", domain.ErrInvalidAccessKey, key)
	}
	parts := make([]string, len(accessKeyLayout))
	pos := 0
	for i, p := range accessKeyLayout {
		parts[i] = key[pos : pos+p.width]
		pos += p.width
	}
	date, err := time.Parse("02012006", parts[0])
	if err != nil {
		return AccessKeyFields{}, fmt.Errorf("%w: fecha %q: %v", domain.ErrInvalidAccessKey, parts[0], err)
	}
	return AccessKeyFields{
		IssueDate:     date,
		DocumentType:  parts[1],
		RUC:           parts[2],
		Environment:   parts[3],
		Establishment: parts[4],
		EmissionPoint: parts[5],
		Sequential:    parts[6],
		NumericCode:   parts[7],
		EmissionType:  parts[8],
	}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

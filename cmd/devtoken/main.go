// devtoken emite un Bearer Token para un RUC emisor con JWT_SECRET, JWT_ISSUER y
// JWT_EXPIRATION de la configuración. Sólo para entornos de desarrollo y pruebas.
//
//	go run ./cmd/devtoken -ruc 0999999999001
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/jhoicas/comprobantes-sri/pkg/config"
	"github.com/jhoicas/comprobantes-sri/pkg/jwt"
	pkgsri "github.com/jhoicas/comprobantes-sri/pkg/sri"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuración: %v\n", err)
		os.Exit(1)
	}
	os.Exit(run(os.Args[1:], os.Stdout, cfg.JWT))
}

func run(args []string, out io.Writer, jwtCfg config.JWTConfig) int {
	fs := flag.NewFlagSet("devtoken", flag.ContinueOnError)
	fs.SetOutput(out)
	ruc := fs.String("ruc", "", "RUC del emisor (claim ruc)")
	user := fs.String("user", "dev", "identificador del usuario (claim user_id)")
	minutes := fs.Int("exp", jwtCfg.Expiration, "minutos de validez")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := pkgsri.ValidateRUC(*ruc); err != nil {
		fmt.Fprintf(out, "RUC inválido: %v\n", err)
		return 2
	}
	token, err := jwt.Generate(jwtCfg.Secret, *user, pkgsri.NormalizeRUC(*ruc), "emisor", jwtCfg.Issuer, *minutes)
	if err != nil {
		fmt.Fprintf(out, "generar token: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, token)
	return 0
}

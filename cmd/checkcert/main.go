// checkcert diagnostica un certificado de firma .p12 antes de registrarlo:
// lectura del archivo, contraseña, tipo de llave, vigencia y RUC del titular.
//
//	go run ./cmd/checkcert -path firma.p12 -password secreto -ruc 0999999999001
//
// Sin flags usa SRI_DEV_CERT_PATH / SRI_DEV_CERT_PASSWORD / SRI_DEV_CERT_OWNER.
package main

import (
	"crypto/tls"
	"crypto/x509"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jhoicas/comprobantes-sri/internal/infrastructure/sri/signer"
	"github.com/jhoicas/comprobantes-sri/pkg/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, time.Now()))
}

func run(args []string, out io.Writer, now time.Time) int {
	var sriCfg config.SRIConfig
	if cfg, err := config.Load(); err == nil {
		sriCfg = cfg.SRI
	}

	fs := flag.NewFlagSet("checkcert", flag.ContinueOnError)
	fs.SetOutput(out)
	path := fs.String("path", sriCfg.DevCertPath, "ruta del archivo .p12/.pfx")
	password := fs.String("password", sriCfg.DevCertPassword, "contraseña del certificado")
	ruc := fs.String("ruc", sriCfg.DevCertOwner, "RUC esperado del titular (opcional)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *path == "" {
		fmt.Fprintln(out, "❌ indique -path o SRI_DEV_CERT_PATH")
		return 2
	}

	fmt.Fprintln(out, "🔍 DIAGNÓSTICO DE CERTIFICADO SRI")
	fmt.Fprintln(out, "----------------------------------")
	fmt.Fprintf(out, "📂 Archivo: %s\n", *path)

	info, err := os.Stat(*path)
	if err != nil {
		fmt.Fprintf(out, "\n❌ ERROR DE ARCHIVO: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "✅ Archivo encontrado. Tamaño: %d bytes\n", info.Size())

	cert, err := signer.LoadFromP12(*path, *password)
	if err != nil {
		fmt.Fprintf(out, "\n❌ ERROR DE CONTRASEÑA O FORMATO: %v\n", err)
		return 1
	}
	return report(out, cert, *ruc, now)
}

func report(out io.Writer, cert tls.Certificate, ruc string, now time.Time) int {
	leaf := cert.Leaf
	fmt.Fprintf(out, "✅ PKCS#12 decodificado (llave RSA)\n\n")
	fmt.Fprintf(out, "   Titular:  %s\n", leaf.Subject.String())
	fmt.Fprintf(out, "   Emisor:   %s\n", leaf.Issuer.String())
	fmt.Fprintf(out, "   Serie:    %s\n", leaf.SerialNumber.String())
	fmt.Fprintf(out, "   Vigencia: %s → %s\n", leaf.NotBefore.Format(time.DateOnly), leaf.NotAfter.Format(time.DateOnly))
	fmt.Fprintf(out, "   Cadena:   %d certificado(s) de la entidad certificadora\n", len(cert.Certificate)-1)
	for _, der := range cert.Certificate[1:] {
		if ca, err := x509.ParseCertificate(der); err == nil {
			fmt.Fprintf(out, "             - %s\n", ca.Subject.String())
		}
	}

	status := 0
	switch {
	case now.Before(leaf.NotBefore):
		fmt.Fprintln(out, "\n❌ El certificado todavía no es válido")
		status = 1
	case now.After(leaf.NotAfter):
		fmt.Fprintln(out, "\n❌ El certificado está vencido")
		status = 1
	default:
		days := int(leaf.NotAfter.Sub(now).Hours() / 24)
		fmt.Fprintf(out, "   Días restantes: %d\n", days)
	}

	if ruc != "" {
		if strings.Contains(leaf.Subject.SerialNumber, ruc) || strings.Contains(leaf.Subject.String(), ruc) {
			fmt.Fprintf(out, "✅ El titular corresponde al RUC %s\n", ruc)
		} else {
			fmt.Fprintf(out, "\n❌ El certificado no menciona el RUC %s\n", ruc)
			status = 1
		}
	}
	if status == 0 {
		fmt.Fprintln(out, "\n✨ El certificado y la contraseña son correctos.")
	}
	return status
}

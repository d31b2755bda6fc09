package main

import (
	"fmt"
	"os"
	"time"

	infranfse "github.com/jhoicas/nfse-api/internal/infrastructure/nfse"
)

// Diagnóstico rápido de certificado A1: go run debug_cert.go <arquivo.pfx> <senha>
func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "uso: go run debug_cert.go <arquivo.pfx> <senha>")
		os.Exit(1)
	}
	certPath := os.Args[1]
	certPass := os.Args[2]

	fmt.Println("🔍 DIAGNÓSTICO DE CERTIFICADO NFS-e")
	fmt.Println("-----------------------------------")
	fmt.Printf("📂 Lendo: %s\n", certPath)

	pfxData, err := os.ReadFile(certPath)
	if err != nil {
		fmt.Println("\n❌ ERRO DE ARQUIVO:")
		fmt.Printf("   Não foi possível abrir o arquivo.\n")
		fmt.Printf("   Detalhe técnico: %v\n", err)
		return
	}
	fmt.Printf("✅ Arquivo encontrado. Tamanho: %d bytes\n", len(pfxData))

	bundle, err := infranfse.LoadBundle(pfxData, certPass)
	if err != nil {
		fmt.Println("\n❌ ERRO AO ABRIR O CONTAINER:")
		fmt.Printf("   Detalhe técnico: %v\n", err)
		fmt.Println("   Verifique a senha e se o arquivo é um PKCS#12 válido (.pfx/.p12).")
		return
	}
	defer bundle.Close()

	fmt.Println("✅ Container aberto com sucesso")
	fmt.Printf("   Titular:  %s\n", bundle.SubjectCN)
	fmt.Printf("   Emissor:  %s\n", bundle.IssuerCN)
	fmt.Printf("   Validade: %s a %s\n",
		bundle.NotBefore.Format("02/01/2006"), bundle.NotAfter.Format("02/01/2006"))

	v := bundle.Validate(time.Now())
	if v.IsValid {
		fmt.Printf("✅ %s\n", v.Message)
	} else {
		fmt.Printf("❌ %s\n", v.Message)
	}
}

// seed_servicos gera o script SQL do catálogo de serviços municipais
// (itens da lista de serviços LC 116/2003) a partir do XML publicado pela
// prefeitura, que vem codificado em ISO-8859-1.
//
// Uso: go run ./cmd/seed_servicos [caminho/ListaServicos.xml]
// Por padrão procura ListaServicos.xml no diretório atual.
// Escreve: internal/infrastructure/postgres/migrations/002_seed_servicos.sql
package main

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

type listaServicos struct {
	Servicos []servico `xml:"servico"`
}

type servico struct {
	Codigo    string `xml:"codigo,attr"`
	Descricao string `xml:"descricao,attr"`
	Aliquota  string `xml:"aliquota,attr"`
}

func main() {
	xmlPath := "ListaServicos.xml"
	if len(os.Args) > 1 {
		xmlPath = os.Args[1]
	}
	f, err := os.Open(xmlPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir XML: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	var lista listaServicos
	dec := xml.NewDecoder(f)
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		if strings.EqualFold(charset, "ISO-8859-1") || strings.EqualFold(charset, "ISO8859-1") {
			return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
		}
		return input, nil
	}
	if err := dec.Decode(&lista); err != nil {
		fmt.Fprintf(os.Stderr, "Decodificar XML: %v\n", err)
		os.Exit(1)
	}

	// Deduplica por código; o último registro prevalece
	byCode := make(map[string]servico)
	for _, s := range lista.Servicos {
		code := strings.TrimSpace(s.Codigo)
		if code == "" || strings.TrimSpace(s.Descricao) == "" {
			continue
		}
		s.Codigo = code
		byCode[code] = s
	}
	if len(byCode) == 0 {
		fmt.Fprintln(os.Stderr, "Nenhum serviço encontrado no XML")
		os.Exit(1)
	}

	// Ordena por código para saída estável
	var codes []string
	for c := range byCode {
		codes = append(codes, c)
	}
	sort.Strings(codes)

	moduleRoot := findModuleRoot()
	outPath := filepath.Join(moduleRoot, "internal", "infrastructure", "postgres", "migrations", "002_seed_servicos.sql")
	out, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Criar arquivo: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	out.WriteString("-- Catálogo de serviços municipais (lista LC 116/2003)\n")
	out.WriteString("-- Gerado desde ListaServicos.xml (prefeitura)\n\n")
	out.WriteString("INSERT INTO servicos_municipais (codigo, descricao, aliquota_sugerida) VALUES\n")
	for i, c := range codes {
		s := byCode[c]
		aliquota := strings.TrimSpace(s.Aliquota)
		if aliquota == "" {
			aliquota = "NULL"
		}
		sep := ","
		if i == len(codes)-1 {
			sep = ""
		}
		fmt.Fprintf(out, "  ('%s', '%s', %s)%s\n", s.Codigo, escapeSQL(strings.TrimSpace(s.Descricao)), aliquota, sep)
	}
	out.WriteString("ON CONFLICT (codigo) DO UPDATE SET descricao = EXCLUDED.descricao, aliquota_sugerida = EXCLUDED.aliquota_sugerida;\n")

	fmt.Printf("Gerado %s: %d serviços\n", outPath, len(codes))
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func findModuleRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

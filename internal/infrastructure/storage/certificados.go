// Guarda dos arquivos .pfx enviados pelas empresas. O arquivo fica fora da
// árvore pública do servidor e a senha nunca passa por aqui: ela vive
// cifrada no banco, via cofre.

package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrExtensaoInvalida marca upload com extensão fora da lista .pfx/.p12.
var ErrExtensaoInvalida = errors.New("storage: extensão de certificado inválida, use .pfx ou .p12")

// CertificadoStorage persiste os contêineres PKCS#12 em disco, um arquivo
// por upload, nomeado por empresa e timestamp.
type CertificadoStorage struct {
	dir string
}

// NewCertificadoStorage cria o storage apontando para dir.
func NewCertificadoStorage(dir string) *CertificadoStorage {
	return &CertificadoStorage{dir: dir}
}

// ValidarExtensao confere a extensão declarada do arquivo enviado.
func ValidarExtensao(filename string) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pfx", ".p12":
		return nil
	default:
		return ErrExtensaoInvalida
	}
}

// Save grava o PFX com permissão restrita e devolve o caminho absoluto.
func (s *CertificadoStorage) Save(companyID string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return "", fmt.Errorf("storage: criando diretório de certificados: %w", err)
	}
	name := fmt.Sprintf("cert_%s_%d.pfx", companyID, time.Now().UnixNano())
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("storage: gravando certificado: %w", err)
	}
	return path, nil
}

// Read lê o PFX salvo.
func (s *CertificadoStorage) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: lendo certificado: %w", err)
	}
	return data, nil
}

// Delete remove o arquivo. Arquivo já ausente não é erro: o objetivo é o
// estado final, não a operação.
func (s *CertificadoStorage) Delete(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: removendo certificado: %w", err)
	}
	return nil
}

package storage

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidarExtensao(t *testing.T) {
	assert.NoError(t, ValidarExtensao("certificado.pfx"))
	assert.NoError(t, ValidarExtensao("CERTIFICADO.PFX"))
	assert.NoError(t, ValidarExtensao("empresa.p12"))
	assert.ErrorIs(t, ValidarExtensao("certificado.pem"), ErrExtensaoInvalida)
	assert.ErrorIs(t, ValidarExtensao("certificado"), ErrExtensaoInvalida)
	assert.ErrorIs(t, ValidarExtensao("malicioso.pfx.exe"), ErrExtensaoInvalida)
}

func TestSaveReadDelete(t *testing.T) {
	s := NewCertificadoStorage(t.TempDir())

	path, err := s.Save("empresa-1", []byte{0x30, 0x82, 0x01})
	require.NoError(t, err)
	assert.FileExists(t, path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := s.Read(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x30, 0x82, 0x01}, data)

	require.NoError(t, s.Delete(path))
	assert.NoFileExists(t, path)
}

func TestDeleteIdempotente(t *testing.T) {
	s := NewCertificadoStorage(t.TempDir())

	assert.NoError(t, s.Delete(""))
	assert.NoError(t, s.Delete("/caminho/que/nao/existe.pfx"))
}

func TestSaveNomesUnicosPorUpload(t *testing.T) {
	s := NewCertificadoStorage(t.TempDir())

	a, err := s.Save("empresa-1", []byte{1})
	require.NoError(t, err)
	b, err := s.Save("empresa-1", []byte{2})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

package nfse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaultRoundTrip(t *testing.T) {
	v := NewVault("chave-de-teste-bem-longa-32-bytes!!")

	enc, err := v.Encrypt("senha-do-certificado")
	require.NoError(t, err)

	parts := strings.SplitN(enc, ":", 2)
	require.Len(t, parts, 2, "formato esperado ivhex:cipherhex")
	assert.Len(t, parts[0], 32, "IV de 16 bytes em hex")

	dec, err := v.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "senha-do-certificado", dec)
}

func TestVaultIVUnicoPorCifracao(t *testing.T) {
	v := NewVault("segredo")

	a, err := v.Encrypt("mesma-senha")
	require.NoError(t, err)
	b, err := v.Encrypt("mesma-senha")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "IV novo a cada cifração")

	da, _ := v.Decrypt(a)
	db, _ := v.Decrypt(b)
	assert.Equal(t, da, db)
}

func TestVaultSegredoCurtoEPreenchido(t *testing.T) {
	// Segredo menor que 32 bytes é preenchido com zeros; round-trip funciona.
	v := NewVault("curto")

	enc, err := v.Encrypt("x")
	require.NoError(t, err)
	dec, err := v.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "x", dec)
}

func TestVaultDecryptFormatoInvalido(t *testing.T) {
	v := NewVault("segredo")

	casos := []string{
		"",
		"sem-separador",
		":somentecifra",
		"abcd:",
		"zz:zz",                           // não-hex
		"abcd:" + strings.Repeat("ab", 8), // IV curto
	}
	for _, c := range casos {
		_, err := v.Decrypt(c)
		assert.ErrorIs(t, err, ErrFormatoCofre, "entrada %q", c)
	}
}

func TestVaultDecryptChaveErrada(t *testing.T) {
	enc, err := NewVault("chave-a").Encrypt("senha")
	require.NoError(t, err)

	// O padding quase sempre denuncia a chave errada; quando por azar não
	// denuncia, o plaintext decifrado nunca pode bater com o original.
	dec, err := NewVault("chave-b").Decrypt(enc)
	if err == nil {
		assert.NotEqual(t, "senha", dec)
	}
}

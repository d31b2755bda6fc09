package nfse

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Erros do cofre de senhas de certificado.
var (
	ErrCifrar       = errors.New("nfse: falha ao cifrar segredo")
	ErrDecifrar     = errors.New("nfse: falha ao decifrar segredo")
	ErrFormatoCofre = errors.New("nfse: segredo cifrado em formato inválido")
)

// Vault cifra a senha do certificado em repouso com AES-256-CBC. O formato
// persistido é "ivhex:cipherhex", com IV novo a cada cifração. A chave vem
// da configuração do processo e nunca é persistida junto do dado.
type Vault struct {
	key [32]byte
}

// NewVault deriva a chave de 32 bytes a partir do segredo configurado:
// trunca se maior, preenche com zeros se menor. Segredo vazio é rejeitado
// na carga da configuração, não aqui.
func NewVault(secret string) *Vault {
	v := &Vault{}
	copy(v.key[:], secret)
	return v
}

// Encrypt cifra plaintext e retorna "ivhex:cipherhex".
func (v *Vault) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCifrar, err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCifrar, err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out), nil
}

// Decrypt reverte o formato "ivhex:cipherhex". Entrada fora do formato ou
// cifrada com outra chave retorna erro, nunca lixo silencioso.
func (v *Vault) Decrypt(encoded string) (string, error) {
	parts := strings.SplitN(encoded, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", ErrFormatoCofre
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		return "", ErrFormatoCofre
	}
	data, err := hex.DecodeString(parts[1])
	if err != nil || len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", ErrFormatoCofre
	}

	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecifrar, err)
	}

	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)

	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", ErrDecifrar
	}
	return string(plain), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("tamanho inválido")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("padding inválido")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("padding inválido")
		}
	}
	return data[:len(data)-n], nil
}

package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"strings"
)

const (
	// SecretKeyEnv holds the key material for enc:v1: values.
	SecretKeyEnv         = "PETALTOOLS_SECRET_KEY"
	encryptedValuePrefix = "enc:v1:"
	secretScope          = "config"
)

type secretCodec struct {
	aead cipher.AEAD
}

func newSecretCodec(scope string) (*secretCodec, error) {
	key := deriveSecretKey(scope)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &secretCodec{aead: aead}, nil
}

// deriveSecretKey hashes PETALTOOLS_SECRET_KEY when set, else a
// user/host-bound fallback that only decrypts on the same machine.
func deriveSecretKey(scope string) []byte {
	if env := strings.TrimSpace(os.Getenv(SecretKeyEnv)); env != "" {
		if decoded, err := base64.StdEncoding.DecodeString(env); err == nil && len(decoded) > 0 {
			sum := sha256.Sum256(decoded)
			return sum[:]
		}
		sum := sha256.Sum256([]byte(env))
		return sum[:]
	}

	username := "unknown"
	if current, err := user.Current(); err == nil && current != nil {
		username = current.Username
	}
	hostname, _ := os.Hostname()
	material := fmt.Sprintf("petaltools:%s:%s:%s", username, hostname, strings.TrimSpace(scope))
	sum := sha256.Sum256([]byte(material))
	return sum[:]
}

func (c *secretCodec) Encrypt(value string) (string, error) {
	if strings.TrimSpace(value) == "" || isEncryptedValue(value) {
		return value, nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	payload := c.aead.Seal(nonce, nonce, []byte(value), nil)
	return encryptedValuePrefix + base64.StdEncoding.EncodeToString(payload), nil
}

func (c *secretCodec) Decrypt(value string) (string, error) {
	if !isEncryptedValue(value) {
		return value, nil
	}
	raw := strings.TrimPrefix(strings.TrimSpace(value), encryptedValuePrefix)
	payload, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", err
	}
	nonceSize := c.aead.NonceSize()
	if len(payload) < nonceSize {
		return "", errors.New("encrypted payload is too short")
	}
	plaintext, err := c.aead.Open(nil, payload[:nonceSize], payload[nonceSize:], nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func isEncryptedValue(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), encryptedValuePrefix)
}

// EncryptSecret returns value in enc:v1: form for storing in a config file.
func EncryptSecret(value string) (string, error) {
	codec, err := newSecretCodec(secretScope)
	if err != nil {
		return "", err
	}
	return codec.Encrypt(value)
}

package cli

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"github.com/dmitrijs2005/keyescrow/internal/cryptox"
)

const keygenBits = 3072

// generateKeyPair is a test seam; 3072-bit generation is slow.
var generateKeyPair = func() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, keygenBits)
}

// Keygen creates an RSA key pair for key escrow. The private key is written
// as PKCS#8 PEM (mode 0600) and never leaves this machine; the public key is
// written next to it as "<path>.pub".
func (a *App) Keygen(ctx context.Context) error {
	path, err := a.prompt("Private key output path")
	if err != nil {
		return err
	}

	priv, err := generateKeyPair()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	return a.writeKeyPair(path, priv, &priv.PublicKey)
}

// KeygenSigning creates an ECDSA P-256 signing key pair the same way.
func (a *App) KeygenSigning(ctx context.Context) error {
	path, err := a.prompt("Private key output path")
	if err != nil {
		return err
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	return a.writeKeyPair(path, priv, &priv.PublicKey)
}

func (a *App) writeKeyPair(path string, priv, pub any) error {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return err
	}
	if err := writeNewFile(path, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0o600); err != nil {
		return err
	}

	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return err
	}
	if err := writeNewFile(path+".pub", pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), 0o644); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Wrote %s and %s.pub\n", path, path)
	return nil
}

// EnrollKey uploads the encryption (RSA) public key read from a file.
func (a *App) EnrollKey(ctx context.Context) error {
	key, err := a.readPublicKey()
	if err != nil {
		return err
	}
	if _, err := cryptox.ParseEncryptionKey(key); err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.EnrollEncryptionKey(ctx, key); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Encryption key enrolled")
	return nil
}

// EnrollSigningKey uploads an ECDSA public key read from a file.
func (a *App) EnrollSigningKey(ctx context.Context) error {
	key, err := a.readPublicKey()
	if err != nil {
		return err
	}
	if _, err := cryptox.ParseSigningKey(key); err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.EnrollSigningKey(ctx, key); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signing key enrolled")
	return nil
}

func (a *App) readPublicKey() (string, error) {
	path, err := a.prompt("Public key file")
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func writeNewFile(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

package cryptox

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// MinRSABits is the smallest modulus accepted for an encryption key.
const MinRSABits = 2048

var errUnsupportedKey = errors.New("unsupported public key")

// ParseEncryptionKey decodes an enrolled RSA public key and runs the
// validity checks required before wrapping. Accepted encodings are PEM
// ("PUBLIC KEY" or "RSA PUBLIC KEY") and base64 of the DER bytes.
func ParseEncryptionKey(encoded string) (*rsa.PublicKey, error) {
	der, err := decodeKeyDER(encoded)
	if err != nil {
		return nil, err
	}

	var pub *rsa.PublicKey
	if parsed, err := x509.ParsePKIXPublicKey(der); err == nil {
		var ok bool
		if pub, ok = parsed.(*rsa.PublicKey); !ok {
			return nil, fmt.Errorf("%w: not an RSA key", errUnsupportedKey)
		}
	} else if pub, err = x509.ParsePKCS1PublicKey(der); err != nil {
		return nil, fmt.Errorf("parse RSA public key: %w", err)
	}

	if pub.N.BitLen() < MinRSABits {
		return nil, fmt.Errorf("RSA key too small: %d bits", pub.N.BitLen())
	}
	if pub.E < 3 || pub.E%2 == 0 {
		return nil, fmt.Errorf("RSA public exponent %d is invalid", pub.E)
	}
	return pub, nil
}

// ParseSigningKey decodes an enrolled ECDSA public key.
func ParseSigningKey(encoded string) (*ecdsa.PublicKey, error) {
	der, err := decodeKeyDER(encoded)
	if err != nil {
		return nil, err
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse ECDSA public key: %w", err)
	}
	pub, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an ECDSA key", errUnsupportedKey)
	}
	return pub, nil
}

// EncodePublicKey returns the base64 DER (SubjectPublicKeyInfo) form used
// for enrollment.
func EncodePublicKey(pub any) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

func decodeKeyDER(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, errors.New("empty public key")
	}

	if strings.HasPrefix(encoded, "-----BEGIN") {
		block, _ := pem.Decode([]byte(encoded))
		if block == nil {
			return nil, errors.New("failed to decode PEM block containing public key")
		}
		if block.Type != "PUBLIC KEY" && block.Type != "RSA PUBLIC KEY" {
			return nil, fmt.Errorf("%w: PEM type %q", errUnsupportedKey, block.Type)
		}
		return block.Bytes, nil
	}

	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("public key encoding: %w", err)
	}
	return der, nil
}

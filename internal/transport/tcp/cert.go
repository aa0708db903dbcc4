package tcp

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pkcs12"
)

// ErrCertPassword is returned when a client key cannot be decrypted.
var ErrCertPassword = errors.New("client certificate password rejected")

// LoadClientCert reads a client certificate for SASL EXTERNAL / CertFP style
// authentication. certFile is a PKCS#12 bundle (.p12, .pfx) or a PEM file;
// for PEM, keyFile defaults to certFile and may hold an encrypted key.
func LoadClientCert(certFile, keyFile, password string) (tls.Certificate, error) {
	switch strings.ToLower(filepath.Ext(certFile)) {
	case ".p12", ".pfx":
		return loadPKCS12(certFile, password)
	}
	if keyFile == "" {
		keyFile = certFile
	}

	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read client cert: %w", err)
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read client key: %w", err)
	}
	keyPEM, err = decryptKey(keyPEM, password)
	if err != nil {
		return tls.Certificate{}, err
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("client key pair: %w", err)
	}
	return cert, nil
}

// decryptKey returns the first private key block of data as plain PEM.
func decryptKey(data []byte, password string) ([]byte, error) {
	for rest := data; ; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, errors.New("no private key found in PEM data")
		}
		if !strings.HasSuffix(block.Type, "PRIVATE KEY") {
			continue
		}
		//nolint:staticcheck
		if !x509.IsEncryptedPEMBlock(block) {
			return pem.EncodeToMemory(block), nil
		}
		if password == "" {
			return nil, fmt.Errorf("%w: key is encrypted and no password is set", ErrCertPassword)
		}
		//nolint:staticcheck
		der, err := x509.DecryptPEMBlock(block, []byte(password))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCertPassword, err)
		}
		return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der}), nil
	}
}

func loadPKCS12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read client cert: %w", err)
	}
	key, leaf, err := pkcs12.Decode(data, password)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return tls.Certificate{}, fmt.Errorf("%w: %w", ErrCertPassword, err)
		}
		return tls.Certificate{}, fmt.Errorf("decode pkcs12: %w", err)
	}
	return tls.Certificate{
		Certificate: [][]byte{leaf.Raw},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

package vault

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"golang.org/x/crypto/pkcs12"
)

// InspectBundle decodes a PKCS#12 bundle into a TLS client certificate and
// its leaf. A wrong password surfaces here, before anything is persisted.
func InspectBundle(pfx []byte, password string) (*tls.Certificate, *x509.Certificate, error) {
	key, leaf, err := pkcs12.Decode(pfx, password)
	if err != nil {
		return nil, nil, fmt.Errorf("decode PKCS#12 bundle: %w", err)
	}
	tlsCert := &tls.Certificate{
		Certificate: [][]byte{leaf.Raw},
		PrivateKey:  key,
		Leaf:        leaf,
	}
	return tlsCert, leaf, nil
}

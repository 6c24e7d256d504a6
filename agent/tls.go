// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"

	"golang.org/x/crypto/pkcs12"
)

// ErrInvalidPEM indicates that PEM material could not be parsed.
var ErrInvalidPEM = errors.New("agent: invalid PEM material")

// tlsMaterial collects the TLS material configured on a [*Request].
type tlsMaterial struct {
	roots *x509.CertPool
	cert  []byte
	key   []byte
	pairs []tls.Certificate
}

// CA adds PEM-encoded certificate authorities to trust. The value is
// a string or []byte.
func (r *Request) CA(pem any) (*Request, error) {
	data, err := pemBytes("ca", pem)
	if err != nil {
		return nil, err
	}
	if r.tls.roots == nil {
		r.tls.roots = x509.NewCertPool()
	}
	if !r.tls.roots.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("%w: ca", ErrInvalidPEM)
	}
	return r, nil
}

// Cert sets the PEM-encoded client certificate, used along with [*Request.Key].
func (r *Request) Cert(pem any) (*Request, error) {
	data, err := pemBytes("cert", pem)
	if err != nil {
		return nil, err
	}
	r.tls.cert = data
	return r, nil
}

// Key sets the PEM-encoded client private key, used along with [*Request.Cert].
func (r *Request) Key(pem any) (*Request, error) {
	data, err := pemBytes("key", pem)
	if err != nil {
		return nil, err
	}
	r.tls.key = data
	return r, nil
}

// Pfx sets the client certificate and key from PKCS#12 data. The value
// is the raw data ([]byte or string), or a map with "pfx" and
// "passphrase" keys.
func (r *Request) Pfx(value any) (*Request, error) {
	var (
		data       any
		passphrase string
	)
	switch v := value.(type) {
	case map[string]any:
		data = v["pfx"]
		if pass, found := v["passphrase"]; found {
			passphrase = fmt.Sprint(pass)
		}
	default:
		data = value
	}
	raw, err := pemBytes("pfx", data)
	if err != nil {
		return nil, err
	}
	key, leaf, err := pkcs12.Decode(raw, passphrase)
	if err != nil {
		return nil, fmt.Errorf("agent: pfx: %w", err)
	}
	r.tls.pairs = append(r.tls.pairs, tls.Certificate{
		Certificate: [][]byte{leaf.Raw},
		PrivateKey:  key,
		Leaf:        leaf,
	})
	return r, nil
}

func pemBytes(what string, value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("agent: %s: unsupported value type %T", what, value)
	}
}

// config returns nil when no material was configured.
func (m *tlsMaterial) config() (*tls.Config, error) {
	certs := m.pairs
	switch {
	case m.cert != nil && m.key != nil:
		pair, err := tls.X509KeyPair(m.cert, m.key)
		if err != nil {
			return nil, fmt.Errorf("agent: cert/key: %w", err)
		}
		certs = append(certs, pair)
	case m.cert != nil || m.key != nil:
		return nil, fmt.Errorf("%w: cert and key must be set together", ErrInvalidPEM)
	}
	if m.roots == nil && len(certs) <= 0 {
		return nil, nil
	}
	return &tls.Config{
		Certificates: certs,
		RootCAs:      m.roots,
	}, nil
}

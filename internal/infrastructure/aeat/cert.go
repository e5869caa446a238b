package aeat

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/pkcs12"
)

// LoadFromP12 carga certificado y llave privada desde un archivo .p12/.pfx.
// El password puede ser vacío si el archivo no está protegido.
func LoadFromP12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("leer p12: %w", err)
	}
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decodificar p12: %w", err)
	}
	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  priv,
		Leaf:        cert,
	}, nil
}

// LoadCertificate elige el formato por la configuración: con keyPath se leen PEM,
// si no se intenta PKCS#12. certPath vacío devuelve nil (modo dev, sin mTLS).
func LoadCertificate(certPath, keyPath, password string) (*tls.Certificate, error) {
	if certPath == "" {
		return nil, nil
	}
	if keyPath != "" {
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return nil, fmt.Errorf("cargar PEM: %w", err)
		}
		return &cert, nil
	}
	cert, err := LoadFromP12(certPath, password)
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

// CertInfo resumen legible del certificado para diagnóstico.
type CertInfo struct {
	Subject   string
	Issuer    string
	Serial    string
	NotBefore time.Time
	NotAfter  time.Time
}

// Expired indica si el certificado está fuera de vigencia en now.
func (i CertInfo) Expired(now time.Time) bool {
	return now.Before(i.NotBefore) || now.After(i.NotAfter)
}

// Describe extrae los datos del certificado hoja.
func Describe(cert tls.Certificate) (CertInfo, error) {
	leaf := cert.Leaf
	if leaf == nil {
		if len(cert.Certificate) == 0 {
			return CertInfo{}, fmt.Errorf("certificado vacío")
		}
		var err error
		if leaf, err = x509.ParseCertificate(cert.Certificate[0]); err != nil {
			return CertInfo{}, fmt.Errorf("parsear certificado: %w", err)
		}
	}
	return CertInfo{
		Subject:   leaf.Subject.String(),
		Issuer:    leaf.Issuer.String(),
		Serial:    leaf.SerialNumber.Text(16),
		NotBefore: leaf.NotBefore,
		NotAfter:  leaf.NotAfter,
	}, nil
}

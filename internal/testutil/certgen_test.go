package testutil

import (
	"crypto/x509"
	"encoding/pem"
	"testing"
)

func TestGenerateSelfSignedCertKeyPEM(t *testing.T) {
	certPEM, keyPEM, err := GenerateSelfSignedCertKeyPEM("example.com")
	if err != nil {
		t.Fatalf("GenerateSelfSignedCertKeyPEM failed: %v", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		t.Fatal("certificate PEM did not decode")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("failed to parse certificate: %v", err)
	}

	found := false
	for _, name := range cert.DNSNames {
		if name == "example.com" {
			found = true
		}
	}
	if !found {
		t.Errorf("certificate DNS names %v do not include example.com", cert.DNSNames)
	}

	if block, _ := pem.Decode(keyPEM); block == nil || block.Type != "PRIVATE KEY" {
		t.Fatal("key PEM did not decode")
	}
}

func TestGenerateTLSCertificate(t *testing.T) {
	cert := GenerateTLSCertificate(t, "api.example.com")
	if len(cert.Certificate) == 0 {
		t.Fatal("generated tls.Certificate has no certificate chain")
	}
}

/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package telemetry

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	certValidity       = 24 * time.Hour
	caSerialNumber     = 1
	serverSerialNumber = 2
	clientSerialNumber = 3
	certFilePerms      = 0o600
)

// testPKI holds PEM paths for a throwaway CA plus a localhost collector
// certificate and a client certificate, both signed by that CA.
type testPKI struct {
	CAFile         string
	ServerCertFile string
	ServerKeyFile  string
	ClientCertFile string
	ClientKeyFile  string
}

func generateTestPKI(t *testing.T) testPKI {
	t.Helper()

	dir := t.TempDir()

	caKey, caCert := generateCertificate(t, nil, nil, &x509.Certificate{
		SerialNumber:          big.NewInt(caSerialNumber),
		Subject:               pkix.Name{Organization: []string{"Test CA"}},
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	})
	saveCertAndKey(t, dir, "root", caCert, caKey)

	serverKey, serverCert := generateCertificate(t, caKey, caCert, &x509.Certificate{
		SerialNumber: big.NewInt(serverSerialNumber),
		Subject:      pkix.Name{Organization: []string{"Test Collector"}},
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
	})
	saveCertAndKey(t, dir, "server", serverCert, serverKey)

	clientKey, clientCert := generateCertificate(t, caKey, caCert, &x509.Certificate{
		SerialNumber: big.NewInt(clientSerialNumber),
		Subject:      pkix.Name{Organization: []string{"Test Client"}},
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	})
	saveCertAndKey(t, dir, "client", clientCert, clientKey)

	return testPKI{
		CAFile:         filepath.Join(dir, "root.pem"),
		ServerCertFile: filepath.Join(dir, "server.pem"),
		ServerKeyFile:  filepath.Join(dir, "server-key.pem"),
		ClientCertFile: filepath.Join(dir, "client.pem"),
		ClientKeyFile:  filepath.Join(dir, "client-key.pem"),
	}
}

// serverTLSConfig requires and verifies client certificates.
func (p testPKI) serverTLSConfig(t *testing.T) *tls.Config {
	t.Helper()

	cert, err := tls.LoadX509KeyPair(p.ServerCertFile, p.ServerKeyFile)
	require.NoError(t, err)

	caPEM, err := os.ReadFile(p.CAFile)
	require.NoError(t, err)

	pool := x509.NewCertPool()
	require.True(t, pool.AppendCertsFromPEM(caPEM))

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS12,
	}
}

// generateCertificate self-signs when parentKey is nil.
func generateCertificate(
	t *testing.T, parentKey *ecdsa.PrivateKey, parentDER []byte, template *x509.Certificate,
) (*ecdsa.PrivateKey, []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template.NotBefore = time.Now().Add(-time.Minute)
	template.NotAfter = time.Now().Add(certValidity)

	parent := template
	signer := key

	if parentKey != nil {
		parent, err = x509.ParseCertificate(parentDER)
		require.NoError(t, err)

		signer = parentKey
	}

	der, err := x509.CreateCertificate(rand.Reader, template, parent, &key.PublicKey, signer)
	require.NoError(t, err)

	return key, der
}

func saveCertAndKey(t *testing.T, dir, name string, certDER []byte, key *ecdsa.PrivateKey) {
	t.Helper()

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".pem"), certPEM, certFilePerms))

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+"-key.pem"), keyPEM, certFilePerms))
}

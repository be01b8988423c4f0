package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	var alg string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Print a new token signing key",
		Long: `Prints key material for TOKEN_SIGNING_KEY.

HS256 prints a random secret; RS256 and EdDSA print a PKCS#8 PEM private key.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return generateKey(cmd.OutOrStdout(), alg)
		},
	}
	cmd.Flags().StringVar(&alg, "alg", "HS256", "signing algorithm: HS256, RS256 or EdDSA")
	return cmd
}

func generateKey(w io.Writer, alg string) error {
	var private any
	switch strings.ToUpper(alg) {
	case "HS256":
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w, base64.RawURLEncoding.EncodeToString(secret))
		return err
	case "RS256":
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return err
		}
		private = k
	case "EDDSA":
		_, k, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return err
		}
		private = k
	default:
		return fmt.Errorf("unsupported algorithm %q", alg)
	}

	der, err := x509.MarshalPKCS8PrivateKey(private)
	if err != nil {
		return err
	}
	return pem.Encode(w, &pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

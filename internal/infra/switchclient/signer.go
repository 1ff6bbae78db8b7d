package switchclient

import (
	"bytes"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SignatureHeader carrega a assinatura JWS compacta do corpo da requisição.
const SignatureHeader = "X-JWS-Signature"

var (
	ErrMissingSignature = errors.New("missing jws signature")
	ErrInvalidSignature = errors.New("invalid jws signature")
)

// joseHeader é fixo: só assinamos com RS256.
var joseHeader = base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JOSE"}`))

// Signer assina o corpo das chamadas ao switch e confere as assinaturas que chegam dele.
// Qualquer uma das chaves pode faltar: sem privada não assina, sem pública não verifica.
type Signer struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

func NewSigner(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey) *Signer {
	return &Signer{privateKey: privateKey, publicKey: publicKey}
}

// LoadSigner lê as chaves PEM do disco; caminhos vazios são ignorados.
func LoadSigner(privateKeyPath, publicKeyPath string) (*Signer, error) {
	s := &Signer{}
	if privateKeyPath != "" {
		raw, err := os.ReadFile(privateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read jws private key: %w", err)
		}
		if s.privateKey, err = jwt.ParseRSAPrivateKeyFromPEM(raw); err != nil {
			return nil, fmt.Errorf("failed to parse jws private key: %w", err)
		}
	}
	if publicKeyPath != "" {
		raw, err := os.ReadFile(publicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read switch public key: %w", err)
		}
		if s.publicKey, err = jwt.ParseRSAPublicKeyFromPEM(raw); err != nil {
			return nil, fmt.Errorf("failed to parse switch public key: %w", err)
		}
	}
	return s, nil
}

func (s *Signer) CanSign() bool   { return s != nil && s.privateKey != nil }
func (s *Signer) CanVerify() bool { return s != nil && s.publicKey != nil }

// Sign gera o JWS compacto header.payload.assinatura com o corpo como payload.
func (s *Signer) Sign(payload []byte) (string, error) {
	if !s.CanSign() {
		return "", errors.New("jws private key not loaded")
	}
	signingString := joseHeader + "." + base64.RawURLEncoding.EncodeToString(payload)
	signature, err := jwt.SigningMethodRS256.Sign(signingString, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign payload: %w", err)
	}
	return signingString + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

// Verify confere a assinatura e que o payload assinado é exatamente o corpo recebido.
func (s *Signer) Verify(compact string, body []byte) error {
	if !s.CanVerify() {
		return errors.New("switch public key not loaded")
	}
	if strings.TrimSpace(compact) == "" {
		return ErrMissingSignature
	}
	parts := strings.Split(strings.TrimSpace(compact), ".")
	if len(parts) != 3 {
		return fmt.Errorf("%w: malformed token", ErrInvalidSignature)
	}

	// Payload destacado (header..assinatura) também é aceito
	if parts[1] != "" {
		signed, err := base64.RawURLEncoding.DecodeString(parts[1])
		if err != nil {
			return fmt.Errorf("%w: bad payload encoding", ErrInvalidSignature)
		}
		if !bytes.Equal(signed, body) {
			return fmt.Errorf("%w: payload does not match body", ErrInvalidSignature)
		}
	} else {
		parts[1] = base64.RawURLEncoding.EncodeToString(body)
	}

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return fmt.Errorf("%w: bad signature encoding", ErrInvalidSignature)
	}
	if err := jwt.SigningMethodRS256.Verify(parts[0]+"."+parts[1], signature, s.publicKey); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

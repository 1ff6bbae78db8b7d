package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

const SignatureHeader = "X-JWS-Signature"

type SignatureVerifier interface {
	CanVerify() bool
	Verify(compact string, body []byte) error
}

// VerifySignature confere o JWS do switch sobre o corpo bruto.
// strict=false só registra a falha e deixa passar.
func VerifySignature(verifier SignatureVerifier, strict bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !verifier.CanVerify() {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "failed to read body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if err := verifier.Verify(r.Header.Get(SignatureHeader), body); err != nil {
				if strict {
					log.Warn().Err(err).Str("path", r.URL.Path).Msg("Assinatura JWS inválida, requisição recusada")
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnauthorized)
					_, _ = w.Write([]byte(`{"status":"NACK","error":"invalid signature"}`))
					return
				}
				log.Warn().Err(err).Str("path", r.URL.Path).Msg("Assinatura JWS inválida, seguindo em modo permissivo")
			}
			next.ServeHTTP(w, r)
		})
	}
}

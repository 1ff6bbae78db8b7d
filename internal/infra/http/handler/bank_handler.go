package handler

import "net/http"

// BankHandler expõe o diretório de bancos da rede e a saúde do switch
type BankHandler struct {
	directory ReferenceDirectory
}

func NewBankHandler(directory ReferenceDirectory) *BankHandler {
	return &BankHandler{directory: directory}
}

func (h *BankHandler) List(w http.ResponseWriter, r *http.Request) {
	banks := h.directory.Banks(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"banks": banks,
		"total": len(banks),
	})
}

func (h *BankHandler) Health(w http.ResponseWriter, r *http.Request) {
	health := h.directory.Health(r.Context())
	status := http.StatusOK
	if health["status"] == "DOWN" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, health)
}

package usecase

import (
	"context"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/domain"
	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/gateway"
	"github.com/rs/zerolog/log"
)

// Lista usada quando o diretório do switch não responde.
var fallbackBanks = []domain.Bank{
	{Code: "ARCBANK", Name: "ArcBank", Status: "UNKNOWN"},
	{Code: "NEXUS_BANK", Name: "Nexus Bank", Status: "UNKNOWN"},
	{Code: "ECUSOL_BK", Name: "Ecusol", Status: "UNKNOWN"},
}

// DirectoryUseCase expõe dados de referência da rede: motivos de devolução, bancos e saúde.
type DirectoryUseCase struct {
	peer gateway.SwitchPeer
}

func NewDirectory(peer gateway.SwitchPeer) *DirectoryUseCase {
	return &DirectoryUseCase{peer: peer}
}

func (u *DirectoryUseCase) RejectionReasons(ctx context.Context) []domain.RejectionReason {
	reasons, err := u.peer.ListRejectionReasons(ctx)
	if err != nil || len(reasons) == 0 {
		if err != nil {
			log.Warn().Err(err).Msg("Switch não devolveu motivos de devolução, usando lista padrão")
		}
		return domain.DefaultRejectionReasons
	}
	return reasons
}

func (u *DirectoryUseCase) Banks(ctx context.Context) []domain.Bank {
	banks, err := u.peer.ListBanks(ctx)
	if err != nil || len(banks) == 0 {
		if err != nil {
			log.Warn().Err(err).Msg("Diretório de bancos indisponível, usando lista padrão")
		}
		return fallbackBanks
	}
	return banks
}

func (u *DirectoryUseCase) Health(ctx context.Context) map[string]any {
	health, err := u.peer.Health(ctx)
	if err != nil {
		return map[string]any{"status": "DOWN", "error": err.Error()}
	}
	return health
}

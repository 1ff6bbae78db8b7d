// Package scheduler roda a varredura de reconciliação em intervalo fixo.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/Guilherme-G-Cadilhe/Go-LedgerFlow-Interbank-Settlement/internal/usecase"
	"github.com/rs/zerolog/log"
)

type Sweeper interface {
	Sweep(ctx context.Context, batch int) (usecase.SweepResult, error)
}

type Config struct {
	Interval     time.Duration
	BatchSize    int
	RunOnStartup bool
}

// SweepScheduler dispara Sweep a cada Interval até Stop. Uma rodada nunca sobrepõe a anterior.
type SweepScheduler struct {
	sweeper Sweeper
	config  Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSweepScheduler(sweeper Sweeper, config Config) *SweepScheduler {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SweepScheduler{sweeper: sweeper, config: config, ctx: ctx, cancel: cancel}
}

func (s *SweepScheduler) Start() {
	s.wg.Add(1)
	go s.loop()
	log.Info().Dur("interval", s.config.Interval).Int("batch", s.config.BatchSize).Msg("Agendador de reconciliação iniciado")
}

// Stop cancela a rodada em andamento e espera o loop terminar.
func (s *SweepScheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	log.Info().Msg("Agendador de reconciliação parado")
}

func (s *SweepScheduler) loop() {
	defer s.wg.Done()

	if s.config.RunOnStartup {
		s.runOnce()
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *SweepScheduler) runOnce() {
	start := time.Now()
	result, err := s.sweeper.Sweep(s.ctx, s.config.BatchSize)
	if err != nil {
		if s.ctx.Err() == nil {
			log.Error().Err(err).Msg("Falha na varredura de reconciliação")
		}
		return
	}
	if result.Scanned == 0 {
		log.Debug().Msg("Nenhuma transação pendente para reconciliar")
		return
	}
	log.Info().
		Int("scanned", result.Scanned).
		Int("resolved", result.Resolved).
		Int("failed", result.Failed).
		Dur("took", time.Since(start)).
		Msg("Varredura de reconciliação concluída")
}

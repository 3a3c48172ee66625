// Binary gate runs one compliance worker per configured signal mailbox.
package main

import (
	"context"
	"os"
	ossignal "os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"bosgate/internal/audit"
	"bosgate/internal/broker"
	"bosgate/internal/channel"
	"bosgate/internal/config"
	"bosgate/internal/gate"
	"bosgate/internal/metrics"
	"bosgate/internal/phase"
	"bosgate/internal/risk"
	"bosgate/internal/util"
)

func main() {
	_ = godotenv.Load()

	cfgPath := config.GetEnv("BOSGATE_CONFIG", "config.yaml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		bootLog := util.NewLogger("info")
		bootLog.Fatal().Err(err).Str("path", cfgPath).Msg("load config")
	}

	log := util.NewLogger(config.GetEnv("BOSGATE_LOG_LEVEL", cfg.App.LogLevel))

	metricsAddr := config.GetEnv("BOSGATE_METRICS_ADDR", cfg.App.MetricsAddr)
	if metricsAddr != "" {
		_ = metrics.Serve(metricsAddr)
		log.Info().Str("addr", metricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	recorder, err := audit.NewRecorder(cfg.Audit.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Audit.Path).Msg("open audit store")
	}
	defer recorder.Close()

	classifier := buildClassifier(cfg)
	sizer := risk.NewSizer(cfg.Risk.RiskFraction, cfg.Risk.MinATRPips, cfg.Risk.MaxATRPips)
	limiter := gate.NewDailyLimiter(cfg.Risk.DailyCeilingFraction)

	atr := gate.StaticATR{}
	for _, ch := range cfg.Channels {
		atr[ch.Symbol] = ch.ATRPips
	}

	var wg sync.WaitGroup
	for _, ch := range cfg.Channels {
		workerLog := util.WorkerLogger(log, ch.Symbol)
		worker := &gate.Worker{
			Symbol:        ch.Symbol,
			Channel:       channel.New(ch.SignalPath, workerLog),
			Tracker:       phase.NewTracker(),
			Sizer:         sizer,
			Classifier:    classifier,
			Broker:        buildBroker(cfg, ch, workerLog),
			Recorder:      recorder,
			Limiter:       limiter,
			ATR:           atr,
			Log:           workerLog,
			PollInterval:  time.Duration(cfg.Poll.IntervalMs) * time.Millisecond,
			BrokerTimeout: time.Duration(cfg.Poll.BrokerTimeoutMs) * time.Millisecond,
			RewardRisk:    cfg.Risk.RewardRiskMultiple,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			// A worker-fatal error stops this worker only; siblings keep running.
			_ = worker.Run(ctx)
		}()
	}

	log.Info().Int("workers", len(cfg.Channels)).Msg("gate started")
	<-ctx.Done()
	log.Info().Msg("shutting down")
	wg.Wait()
}

func buildClassifier(cfg *config.Config) *risk.Classifier {
	if len(cfg.Assets) == 0 {
		return risk.DefaultClassifier()
	}
	profiles := make([]risk.Profile, 0, len(cfg.Assets)+1)
	matches := make([][]string, 0, len(cfg.Assets)+1)
	for _, a := range cfg.Assets {
		profiles = append(profiles, risk.Profile{
			Class:            a.Class,
			PipSize:          a.PipSize,
			USDPerPipPerUnit: a.USDPerPipPerUnit,
			MinUnits:         a.MinUnits,
			MaxUnits:         a.MaxUnits,
			UnitStep:         a.UnitStep,
		})
		matches = append(matches, a.Match)
	}
	// Keep the built-in FX row as the catch-all behind config overrides.
	fx, _ := risk.DefaultClassifier().Resolve("EURUSD")
	profiles = append(profiles, fx)
	matches = append(matches, nil)
	return risk.NewClassifier(profiles, matches)
}

func buildBroker(cfg *config.Config, ch config.Channel, log zerolog.Logger) broker.Broker {
	if cfg.Broker.Mode == "bridge" {
		command := channel.New(ch.CommandPath, log)
		result := channel.New(ch.ResultPath, log)
		return broker.NewFileBridge(command, result,
			time.Duration(cfg.Broker.ResultPollMs)*time.Millisecond,
			time.Duration(cfg.Poll.ConsumeTimeoutMs)*time.Millisecond,
			log)
	}
	return broker.NewPaper(cfg.Broker.PaperBalance, cfg.Broker.PaperCurrency, log)
}

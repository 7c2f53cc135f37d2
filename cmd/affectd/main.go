package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"affectd/internal/clock"
	"affectd/internal/config"
	"affectd/internal/decay"
	"affectd/internal/emotion"
	"affectd/internal/generate"
	"affectd/internal/interaction"
	"affectd/internal/modulate"
	"affectd/internal/scheduler"
	"affectd/internal/store"
	"affectd/internal/transport"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.Real{}

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		logger.Error("open store failed", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		logger.Error("migrate failed", "error", err)
		os.Exit(1)
	}

	decayParams := decay.DefaultParams()
	decayParams.TickSeconds = cfg.DecayStepSeconds.Seconds()
	decayParams.InertiaThreshold = cfg.InertiaThreshold
	decayParams.InertiaFactor = cfg.InertiaFactor
	decayParams.IdleThresholdSeconds = cfg.IdleThresholdSeconds.Seconds()
	decayParams.SaturationCapDays = cfg.SaturationCapDays

	restore, err := st.Restore(ctx, clk.Now(), decayParams)
	if err != nil {
		logger.Warn("restore failed, attempting backup recovery", "error", err)
		if err := st.IntegrityCheck(ctx); err != nil {
			logger.Error("database integrity check failed", "error", err)
		}
		restore, err = st.RecoverAndRestore(ctx, clk.Now(), decayParams)
		if err != nil {
			logger.Error("recovery failed", "error", err)
			os.Exit(1)
		}
	}
	if restore.Saturated {
		logger.Warn("offline gap exceeded saturation cap, state aged to cap only")
	}

	provider, err := generate.NewProvider(generate.Config{
		Provider:      cfg.LLMProvider,
		Model:         cfg.LLMModel,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		ClaudeBaseURL: cfg.ClaudeBaseURL,
		ClaudeAPIKey:  cfg.ClaudeAPIKey,
	})
	if err != nil {
		logger.Error("generate provider setup failed", "error", err)
		os.Exit(1)
	}

	var transports []transport.Transport
	if cfg.MQTTEnabled {
		transports = append(transports, transport.NewMQTTTransport(transport.MQTTConfig{
			BrokerURL:   cfg.MQTTBrokerURL,
			ClientID:    cfg.MQTTClientID,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			TopicPrefix: cfg.MQTTTopicPrefix,
		}, logger))
	}
	if cfg.DiscordEnabled {
		transports = append(transports, transport.NewDiscordTransport(transport.DiscordConfig{
			BotToken:  cfg.DiscordBotToken,
			ChannelID: cfg.DiscordChannelID,
		}, logger))
	}
	var wsTransport *transport.WebSocketTransport
	if cfg.WebSocketEnabled {
		wsTransport = transport.NewWebSocketTransport(transport.WebSocketConfig{Path: cfg.WebSocketPath}, logger)
		transports = append(transports, wsTransport)
	}

	interactionCfg := interaction.DefaultConfig()
	interactionCfg.DampeningWindow = cfg.DampeningWindow
	interactionCfg.DampeningSlope = cfg.DampeningSlope
	interactionCfg.AmplificationGain = cfg.MomentumAmplification
	handler := interaction.NewHandler(interactionCfg)

	modConfig := modulate.DefaultConfig()
	modConfig.VarianceLow = cfg.VarianceLow
	modConfig.VarianceHigh = cfg.VarianceHigh

	schedCfg := scheduler.DefaultConfig()
	schedCfg.TickInterval = cfg.TickIntervalSeconds
	schedCfg.DecayParams = decayParams
	schedCfg.GenerateTimeout = cfg.GenerateTimeoutSeconds
	schedCfg.SendTimeout = cfg.SendTimeoutSeconds
	schedCfg.ShutdownDrain = cfg.ShutdownDrainSeconds
	schedCfg.SnapshotEveryNInteractions = cfg.SnapshotEveryNInteractions
	schedCfg.SnapshotWallCadence = cfg.SnapshotWallCadenceMinutes

	sched := scheduler.New(schedCfg, clk, st, handler, modConfig, provider, transports, logger,
		restore.State, restore.State.Instant)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Get("/v1/state", func(w http.ResponseWriter, _ *http.Request) {
		state := sched.State()
		out := make(map[string]float64, len(state.Values))
		for i, v := range state.Values {
			out[emotion.Dimension(i).String()] = v
		}
		writeJSON(w, http.StatusOK, map[string]any{"values": out, "instant": state.Instant})
	})
	r.Post("/v1/snapshot", func(w http.ResponseWriter, r *http.Request) {
		gen, err := st.SaveSnapshot(r.Context(), sched.State(), store.KindManual, clk.Now())
		if err != nil {
			logger.Error("manual snapshot failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"generation": gen})
	})
	if wsTransport != nil {
		r.HandleFunc(cfg.WebSocketPath, wsTransport.Handler)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("admin http server started", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	schedDone := make(chan struct{})
	go func() {
		if err := sched.Run(ctx); err != nil {
			logger.Error("scheduler stopped with error", "error", err)
		}
		close(schedDone)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}

	<-schedDone
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

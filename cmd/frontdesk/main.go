package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/antoniostano/frontdesk/internal/callstore"
	"github.com/antoniostano/frontdesk/internal/config"
	"github.com/antoniostano/frontdesk/internal/generate"
	"github.com/antoniostano/frontdesk/internal/httpapi"
	"github.com/antoniostano/frontdesk/internal/observability"
	"github.com/antoniostano/frontdesk/internal/receptionist"
	"github.com/antoniostano/frontdesk/internal/synthesize"
	"github.com/antoniostano/frontdesk/internal/transcribe"
	"github.com/antoniostano/frontdesk/internal/twiml"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := callstore.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("call store init failed: %v", err)
	}
	defer store.Close()
	if cfg.DatabaseURL == "" {
		log.Printf("call store: in-memory (set DATABASE_URL for postgres)")
	} else {
		log.Printf("call store: postgres")
	}

	var generator receptionist.Generator
	if cfg.GeminiAPIKey != "" {
		generator = generate.NewGeminiClient(generate.Config{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		})
		log.Printf("generator: gemini (%s)", cfg.GeminiModel)
	} else {
		generator = receptionist.NewMockGenerator()
		log.Printf("generator: mock (GEMINI_API_KEY is not set)")
	}

	var transcriber receptionist.Transcriber
	if cfg.TranscribeAPIURL != "" {
		transcriber = transcribe.NewClient(transcribe.Config{
			APIURL:            cfg.TranscribeAPIURL,
			APIKey:            cfg.TranscribeAPIKey,
			Model:             cfg.TranscribeModel,
			RecordingAuthUser: cfg.TwilioAccountSID,
			RecordingAuthPass: cfg.TwilioAuthToken,
		})
		log.Printf("transcriber: %s (%s)", cfg.TranscribeAPIURL, cfg.TranscribeModel)
	} else {
		log.Printf("transcriber: disabled, relying on provider transcripts")
	}

	clips := synthesize.NewClipCache(5 * time.Minute)
	var synthesizer receptionist.Synthesizer
	if cfg.ElevenLabsAPIKey != "" && cfg.PublicBaseURL != "" {
		synthesizer = synthesize.NewClient(synthesize.Config{
			APIKey:  cfg.ElevenLabsAPIKey,
			VoiceID: cfg.ElevenLabsVoiceID,
			ModelID: cfg.ElevenLabsModelID,
		}, clips)
		log.Printf("synthesizer: elevenlabs (%s)", cfg.ElevenLabsVoiceID)
	} else {
		log.Printf("synthesizer: disabled, using provider native voice")
	}

	orchestrator := receptionist.NewOrchestrator(
		store,
		generator,
		transcriber,
		synthesizer,
		metrics,
		cfg.MaxTurns,
		cfg.PublicBaseURL,
	)

	builder := twiml.NewBuilder(twiml.Config{
		PublicBaseURL:        cfg.PublicBaseURL,
		Voice:                cfg.SayVoice,
		Language:             cfg.SayLanguage,
		RecordMaxSeconds:     cfg.RecordMaxSeconds,
		RecordSilenceTimeout: cfg.RecordSilenceTimeout,
	})

	api := httpapi.New(cfg, store, orchestrator, builder, clips, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	go janitor(runCtx, store, clips, metrics, cfg.CallInactivityTimeout)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}

// janitor expires calls whose provider status webhook never arrived and
// sweeps stale audio clips.
func janitor(ctx context.Context, store callstore.Store, clips *synthesize.ClipCache, metrics *observability.Metrics, idleTimeout time.Duration) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := store.ExpireInactive(ctx, idleTimeout)
			if err != nil {
				log.Printf("janitor: expire inactive calls: %v", err)
				continue
			}
			if expired > 0 {
				log.Printf("janitor: expired %d inactive calls", expired)
				for i := 0; i < expired; i++ {
					metrics.CallEvents.WithLabelValues("expired").Inc()
				}
				if count, err := store.ActiveCount(ctx); err == nil {
					metrics.ActiveCalls.Set(float64(count))
				}
			}
			clips.Sweep()
		}
	}
}

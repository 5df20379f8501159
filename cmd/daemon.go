package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voxkeep/voxkeep/internal/beep"
	"github.com/voxkeep/voxkeep/internal/capture"
	"github.com/voxkeep/voxkeep/internal/config"
	"github.com/voxkeep/voxkeep/internal/control"
	"github.com/voxkeep/voxkeep/internal/logging"
	"github.com/voxkeep/voxkeep/internal/marker"
	"github.com/voxkeep/voxkeep/internal/models"
	"github.com/voxkeep/voxkeep/internal/notify"
	"github.com/voxkeep/voxkeep/internal/recovery"
	"github.com/voxkeep/voxkeep/internal/status"
	"github.com/voxkeep/voxkeep/internal/supervisor"
	"github.com/voxkeep/voxkeep/internal/transcribe"
	"github.com/voxkeep/voxkeep/internal/wav"
	"github.com/voxkeep/voxkeep/internal/writer"
)

// recoveryBudget bounds how long daemon startup waits for the recovery
// scan before letting it continue in the background.
const recoveryBudget = 200 * time.Millisecond

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the capture daemon",
	Long: `Run the long-lived capture daemon.

The daemon hosts the recording pipeline and serves the loopback control
API that the other commands talk to. On startup it reconciles sessions
interrupted by a previous crash before accepting new work.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

func runDaemon() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.EnsureDirectories(cfg); err != nil {
		return err
	}

	log := logging.NewDaemon(config.LogDir(), debugMode)
	defer func() { _ = log.Sync() }()
	log.Info("daemon starting", zap.String("version", version),
		zap.String("addr", cfg.ListenAddr))

	format := wav.Format{SampleRate: cfg.Format.SampleRate, Channels: cfg.Format.Channels}
	store := marker.NewStore(config.MarkersDir(), log)

	var sup *supervisor.Supervisor
	w := writer.New(store, writer.Options{
		SpoolDir:       config.SpoolDir(),
		Format:         format,
		FlushThreshold: cfg.FlushThresholdBytes,
		OnError: func(id string, err error) {
			sup.OnWriterError(id, err)
		},
	}, log)

	writerCtx, stopWriter := context.WithCancel(context.Background())
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		w.Run(writerCtx)
	}()

	pub := status.NewThrottle(
		status.NewFilePublisher(config.StatusDir),
		cfg.StatusCap, cfg.StatusWindow, log)

	sup = supervisor.New(cfg, w, pub, func() capture.Device {
		return capture.NewDevice(cfg.AudioDevice, format)
	}, log)

	var sink transcribe.Sink
	if cfg.Transcribe.Enabled {
		s, err := transcribe.NewGoogleSink(context.Background(), cfg.Transcribe, format, log)
		if err != nil {
			log.Warn("transcription disabled", zap.Error(err))
		} else {
			sink = s
		}
	}

	sup.OnStarted = func(id string) {
		if cfg.Beep {
			beep.Start()
		}
		if cfg.Notifications {
			if err := notify.RecordingStarted(); err != nil {
				log.Debug("notification failed", zap.Error(err))
			}
		}
	}
	sup.OnCommitted = func(rec models.CompletedRecording) {
		if cfg.Beep {
			beep.Stop()
		}
		if cfg.Notifications {
			if err := notify.RecordingSaved(filepath.Base(rec.FinalLocation), rec.Duration); err != nil {
				log.Debug("notification failed", zap.Error(err))
			}
		}
		if sink != nil {
			go sink.Consume(context.Background(), rec)
		}
	}

	// Reconcile leftovers from a previous crash before accepting work.
	scanner := recovery.New(store, config.StatusDir, cfg.MinValidBytes, log)
	if cfg.Notifications {
		scanner.OnSummary = func(completed, discarded int) {
			if err := notify.SessionsRecovered(completed, discarded); err != nil {
				log.Debug("notification failed", zap.Error(err))
			}
		}
	}
	scanner.RunWithBudget(context.Background(), recoveryBudget)
	w.CleanupStale(cfg.StaleTempRetention)

	srv := control.NewServer(cfg.ListenAddr, sup, log)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			log.Error("control API failed", zap.Error(err))
			return err
		}
	}

	// Commit any active session, then stop accepting requests and let the
	// writer drain whatever is still buffered.
	if err := sup.Close(); err != nil {
		log.Error("stop active session on shutdown", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("control API shutdown", zap.Error(err))
	}

	stopWriter()
	select {
	case <-writerDone:
	case <-time.After(5 * time.Second):
		log.Warn("writer did not drain in time")
	}

	log.Info("daemon stopped")
	return nil
}

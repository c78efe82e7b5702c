package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mehmetkaplanceng-afk/ETUNI/internal/app"
	"github.com/mehmetkaplanceng-afk/ETUNI/internal/audit"
	"github.com/mehmetkaplanceng-afk/ETUNI/internal/clock"
	"github.com/mehmetkaplanceng-afk/ETUNI/internal/config"
	"github.com/mehmetkaplanceng-afk/ETUNI/internal/qrpayload"
	"github.com/mehmetkaplanceng-afk/ETUNI/internal/storage/postgres"
	transporthttp "github.com/mehmetkaplanceng-afk/ETUNI/internal/transport/http"
	"github.com/mehmetkaplanceng-afk/ETUNI/migrations"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	config.LoadEnvFile(logger)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Stdout.WriteString(flagsErr.Message + "\n")
			return
		}
		logger.WithError(err).Fatal("load config")
	}
	logger.SetLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("checkin stopped with error")
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		return err
	}
	migrations.SetLogger(logger)
	if err := migrations.Apply(startupCtx, pool); err != nil {
		return err
	}

	clk := clock.NewSystem()
	codec, err := qrpayload.NewCodec([]byte(cfg.QRSecret), clk, qrpayload.WithTTL(cfg.QRTTL))
	if err != nil {
		return err
	}

	wmLogger := audit.NewLogger(logger)
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, wmLogger)
	defer pubSub.Close()

	auditRouter, err := audit.NewRouter(pubSub, logger, wmLogger)
	if err != nil {
		return err
	}

	tickets := postgres.NewTicketRepository(pool)
	directory := postgres.NewDirectoryRepository(pool)

	issuance := app.NewIssuanceService(tickets, directory, codec, clk,
		app.WithIssuanceLogger(logger),
		app.WithMaxCodeAttempts(cfg.CodeMaxAttempts))
	checkIn := app.NewCheckInService(tickets, directory, codec, clk,
		app.WithCheckInLogger(logger),
		app.WithScanObserver(audit.NewPublisher(pubSub, logger)),
		app.WithWalkUpCodeAttempts(cfg.CodeMaxAttempts))
	review := app.NewReviewService(tickets, directory, logger)

	router := transporthttp.NewRouter(transporthttp.Services{
		Issuance: issuance,
		CheckIn:  checkIn,
		Review:   review,
		DB:       pool,
	}, logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, router), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return auditRouter.Run(gctx)
	})
	g.Go(func() error {
		if err := audit.WaitRunning(gctx, auditRouter); err != nil {
			return nil
		}
		logger.WithField("port", cfg.Port).Info("checkin listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, stopping server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return auditRouter.Close()
	})

	return g.Wait()
}

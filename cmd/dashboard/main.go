package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	thingspeak "github.com/dratasich/thingspeak-go-dashboard"
	"github.com/dratasich/thingspeak-go-dashboard/api"
	"github.com/dratasich/thingspeak-go-dashboard/chat"
	"github.com/dratasich/thingspeak-go-dashboard/devices"
	"github.com/dratasich/thingspeak-go-dashboard/metrics"
	"github.com/dratasich/thingspeak-go-dashboard/mqtt"
	"github.com/dratasich/thingspeak-go-dashboard/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	ThingSpeak thingspeak.Config      `env:", prefix=THINGSPEAK_"`
	Poll       telemetry.Config       `env:", prefix=POLL_"`
	Dispatch   devices.DispatchConfig `env:", prefix=DISPATCH_"`
	MQTT       mqtt.Config            `env:", prefix=MQTT_"`

	HTTPAddr  string `env:"HTTP_ADDR,default=:8080"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogPretty bool   `env:"LOG_PRETTY,default=false"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msgf("No .env file loaded: %s", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatal().Msgf("Failed to load configuration: %s", err)
	}
	setupLogging(cfg)

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	client := thingspeak.NewClient(cfg.ThingSpeak)

	dispatcher := devices.NewDispatcher(client, cfg.Dispatch, nil)
	defer dispatcher.Close()
	controller := devices.NewController(dispatcher)

	watcher := telemetry.NewLowBalanceWatcher(cfg.Poll.LowBalance, telemetry.LogNotifier{})
	poller := telemetry.NewPoller(client, cfg.Poll, watcher)

	matcher := chat.NewMatcher(chat.StatusFunc(func() string {
		state := poller.State()
		return chat.BalanceStatus(state.Snapshot.RemainingBalancePercent, state.TotalUsage)
	}))

	if cfg.MQTT.ServerURL != "" {
		bridge := mqtt.NewBridge(cfg.MQTT)
		if err := bridge.Connect(ctx); err != nil {
			log.Error().Msgf("MQTT bridge not connected yet: %s", err)
		}
		defer bridge.Disconnect(context.Background())

		poller.Subscribe(bridge)
		controller.OnChange(bridge.PublishDevice)
		go forwardCommands(ctx, bridge.CommandQueue, controller)
	}

	go controller.Run(ctx)

	handle := poller.Start(ctx)
	defer handle.Stop()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	api.RegisterRoutes(r, api.NewHandler(poller, watcher, controller, matcher))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}
	go func() {
		log.Info().Msgf("Listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Msgf("HTTP server failed: %s", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down ...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Msgf("Failed to shut down HTTP server: %s", err)
	}
}

func setupLogging(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Msgf("Unknown log level %q, using info", cfg.LogLevel)
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// forward device commands received over MQTT to the controller's mailbox
func forwardCommands(ctx context.Context, queue <-chan *devices.CommandRequest, controller *devices.Controller) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-queue:
			controller.Request(*req)
		}
	}
}

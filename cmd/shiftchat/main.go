// Command shiftchat is a terminal client for the team chat and shift calendar.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	shiftChat "github.com/shiftChat"
	"github.com/shiftChat/authProvider"
	"github.com/shiftChat/chatNotification"
	"github.com/shiftChat/chatSync"
	"github.com/shiftChat/config"
	"github.com/shiftChat/firestoreGateway"
	"github.com/shiftChat/gateway"
	"github.com/shiftChat/memoryGateway"
	"github.com/shiftChat/prefs"
	"github.com/shiftChat/telemetry"
)

func main() {
	dev := flag.Bool("dev", false, "use in-memory gateway, auth and prefs (no Firebase or Redis required)")
	metricsAddr := flag.String("metrics", "", "serve Prometheus metrics on this address, e.g. :9090")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file loaded")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %s", err)
	}
	config.ConfigureLogging(cfg.LogLevel)
	telemetry.Init()

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Errorf("metrics server: %s", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		gw        gateway.Gateway
		auth      authenticator
		store     prefs.Store
		publisher chatNotification.Publisher
	)
	if *dev {
		log.Info("-dev: using in-memory gateway, auth and prefs")
		gw = memoryGateway.New()
		auth = newDevAuth()
		store = prefs.NewMemory()
	} else {
		if err := cfg.ValidateFirebase(); err != nil {
			log.Fatal(err)
		}
		fs, err := firestoreGateway.New(ctx, firestoreGateway.Config{
			ProjectID:       cfg.FirebaseProjectID,
			DatabaseURL:     cfg.FirebaseDatabaseURL,
			CredentialsFile: cfg.CredentialsFile,
		})
		if err != nil {
			log.Fatalf("initializing firestore client: %s", err)
		}
		gw = fs

		provider, err := authProvider.New(ctx, cfg.FirebaseAPIKey)
		if err != nil {
			log.Fatal(err)
		}
		auth = provider

		if cfg.RedisURL != "" {
			rs, err := prefs.NewRedis(ctx, cfg.RedisURL, "")
			if err != nil {
				log.Fatal(err)
			}
			store = rs
		} else {
			store = prefs.NewMemory()
		}
		publisher = chatNotification.NewPushClient(cfg.ExpoAccessToken)
	}
	defer gw.Close()
	defer store.Close()

	presenter := &textPresenter{out: os.Stdout}
	app := shiftChat.New(gw, auth, store, presenter, shiftChat.Options{
		Chat: chatSync.Options{
			HistoryLimit: cfg.MessageHistoryLimit,
			Grace:        cfg.SubscriptionGrace,
			EscapeNames:  cfg.MentionEscapeNames,
		},
		Sound:     bell{out: os.Stdout},
		Mentioner: chatNotification.NewDispatcher(gw, publisher),
	})
	defer app.Close()

	listener := auth.OnAuthStateChange(func(account *authProvider.Account) {
		if err := app.HandleAuthState(ctx, account); err != nil {
			log.Error(err)
		}
	})
	defer listener.Close()

	repl := &terminal{app: app, auth: auth, presenter: presenter}
	repl.run(ctx, os.Stdin)
}

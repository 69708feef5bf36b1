package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agentauth.org/internal/activity"
	"agentauth.org/internal/agent"
	"agentauth.org/internal/auth"
	"agentauth.org/internal/httpapi"
	"agentauth.org/internal/obs"
	"agentauth.org/internal/persona"
	"agentauth.org/internal/store/memory"
	"agentauth.org/internal/store/pg"
	"agentauth.org/internal/stream"
	"agentauth.org/internal/webhook"
)

var version = "0.3.0"

type stores interface {
	agent.Store
	persona.Store
	activity.Store
	webhook.Store
}

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("AGENTAUTH_COMMIT"))

	secret := os.Getenv("AGENTAUTH_SECRET")
	if secret == "" {
		log.Fatal("AGENTAUTH_SECRET is required")
	}

	var (
		st      stores
		pgStore *pg.Store
	)
	if dsn := os.Getenv("AGENTAUTH_PG_DSN"); dsn != "" {
		var err error
		pgStore, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		st = pgStore
	} else {
		st = memory.New()
		log.Print("AGENTAUTH_PG_DSN not set, using in-memory store")
	}

	authSvc, err := auth.NewService(st, []byte(secret))
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	rp := httpapi.ReadyProbe{}
	if pgStore != nil {
		rp.DB = pgStore.DB()
	}

	api := httpapi.New(rp, version, httpapi.Deps{
		Agents:   agent.NewRegistry(st),
		Auth:     authSvc,
		Personas: persona.NewManager(st),
		Webhooks: webhook.NewService(st),
		Activity: activity.NewLog(st),
		Stream:   stream.New(),
	})

	addr := os.Getenv("AGENTAUTH_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srvCtx, srvCancel := context.WithCancel(context.Background())
	defer srvCancel()

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(srvCtx),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// Write timeout must outlive SSE subscribers.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Starting agentauth-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	obs.SetReady(true)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}

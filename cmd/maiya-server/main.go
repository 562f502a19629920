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

	"github.com/Aimaiyabot/ai-maiya/internal/chat"
	"github.com/Aimaiyabot/ai-maiya/internal/config"
	"github.com/Aimaiyabot/ai-maiya/internal/db"
	"github.com/Aimaiyabot/ai-maiya/internal/dispatch"
	"github.com/Aimaiyabot/ai-maiya/internal/llm"
	"github.com/Aimaiyabot/ai-maiya/internal/prompts"
	"github.com/Aimaiyabot/ai-maiya/internal/search"
	"github.com/Aimaiyabot/ai-maiya/internal/server"
	"github.com/Aimaiyabot/ai-maiya/internal/store"
)

const sweepInterval = 5 * time.Minute

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer database.Close()
	log.Printf("database connection established (%s)", database.Dialect())
	if err := database.Migrate(); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	log.Println("database migrations completed")
	databaseStore := store.NewDatabaseStore(database)
	memory := store.NewMemoryStore()

	promptStore, err := prompts.NewStore(cfg.PromptsFile)
	if err != nil {
		log.Fatalf("failed to load prompts: %v", err)
	}
	if cfg.PromptsWatch {
		if err := promptStore.Watch(ctx); err != nil {
			log.Printf("[prompts] hot reload disabled: %v", err)
		}
	}

	chatModel, images, err := llm.New(cfg)
	if err != nil {
		log.Fatalf("failed to create model client: %v", err)
	}
	dispatcher := dispatch.New(chatModel, images, promptStore)

	index, err := search.New()
	if err != nil {
		log.Fatalf("failed to create search index: %v", err)
	}
	defer index.Close()
	if n, err := index.Rebuild(ctx, databaseStore.EachConversation); err != nil {
		log.Printf("[search] rebuild failed: %v", err)
	} else {
		log.Printf("[search] indexed %d conversations", n)
	}

	svc := chat.NewService(databaseStore, memory, dispatcher, promptStore, chat.Options{
		Index:          index,
		SummaryTimeout: cfg.SummaryTimeout,
	})

	s, err := server.NewServer(cfg, server.Deps{
		Database:      database,
		DatabaseStore: databaseStore,
		Memory:        memory,
		Chat:          svc,
		Dispatcher:    dispatcher,
		Prompts:       promptStore,
	})
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	go sweep(ctx, memory, databaseStore)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Printf("MAIYA server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	svc.Drain()
}

// sweep expires in-memory OAuth states and pending flags, and purges
// expired sign-in sessions.
func sweep(ctx context.Context, memory *store.MemoryStore, ds *store.DatabaseStore) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			memory.Sweep()
			if n, err := ds.PurgeExpiredSessions(ctx); err != nil {
				log.Printf("[auth] purge sessions failed: %v", err)
			} else if n > 0 {
				log.Printf("[auth] purged %d expired sessions", n)
			}
		}
	}
}

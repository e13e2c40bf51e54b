// main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"

	"github.com/rmacedo-dev/ans-despesas/database"
	"github.com/rmacedo-dev/ans-despesas/etl/config"
	"github.com/rmacedo-dev/ans-despesas/etl/utils"
	"github.com/rmacedo-dev/ans-despesas/routes"
	"github.com/rmacedo-dev/ans-despesas/statistics"
)

func main() {
	log.Println("starting statistics API server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("could not load configuration: %v", err)
	}

	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("could not connect to database: %v", err)
	}
	defer db.Close()

	if err := database.EnsureSchema(db); err != nil {
		log.Fatalf("could not ensure schema: %v", err)
	}

	logger := utils.NewETLLogger(cfg.EnableDetailedLogging)

	svc := statistics.NewMySQLDataService(db)
	cache := statistics.NewResultCache(cfg.CacheTTL)
	engine := statistics.NewEngine(svc, cache, logger)

	router := mux.NewRouter()

	// CORS for browser consumers of the statistics endpoints
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	routes.SetupRoutes(router, engine)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("shutdown signal received, closing connections...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("server shutdown failed: %v", err)
	}

	if err := db.Close(); err != nil {
		log.Printf("closing database connection failed: %v", err)
	}

	log.Println("server stopped")
}

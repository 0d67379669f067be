package main

import (
	"collab-server/auth"
	"collab-server/core"
	"collab-server/handlers/api/documents"
	"collab-server/handlers/websocket"
	authMiddleware "collab-server/middleware"
	"collab-server/stores"
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type roomInfo struct {
	ID    string `json:"id"`
	Users int    `json:"users"`
}

func setupRouter(collab *websocket.Server, registry *websocket.Registry, store core.DocumentStore, validator core.TokenValidator) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/documents", func(r chi.Router) {
		r.Use(authMiddleware.Auth(validator))
		r.Post("/", documents.HandleCreate(store))
		r.Get("/", documents.HandleList(store))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", documents.HandleGet(store))
			r.Get("/versions", documents.HandleListVersions(store))
			r.Post("/members", documents.HandleAddMember(store))
		})
	})

	r.Get("/api/rooms", func(w http.ResponseWriter, r *http.Request) {
		counts := registry.RoomCounts()
		rooms := make([]roomInfo, 0, len(counts))
		for id, users := range counts {
			rooms = append(rooms, roomInfo{ID: id, Users: users})
		}
		sort.Slice(rooms, func(i, j int) bool {
			if rooms[i].Users == rooms[j].Users {
				return rooms[i].ID < rooms[j].ID
			}
			return rooms[i].Users > rooms[j].Users
		})
		render.JSON(w, r, rooms)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", auth.HandleLogin)
		r.Get("/callback", auth.HandleCallback)
	})

	// Both realtime endpoint paths serve the same handshake.
	r.Get("/ws", collab.ServeHTTP)
	r.Get("/websocket", collab.ServeHTTP)

	return r
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	auth.Init()
	auth.InitOAuth()

	store := stores.GetStore()
	validator := auth.GetValidator()
	registry := websocket.NewRegistry()
	collab := websocket.NewServer(store, validator, registry)

	r := setupRouter(collab, registry, store, validator)

	srv := &http.Server{
		Addr:    *listenAddress,
		Handler: r,
	}

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(srv)
}

func waitForShutdown(srv *http.Server) {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-signalC

	logrus.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("Server shutdown failed")
	}
}

package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"kwadrop/cache"
	"kwadrop/config"
	"kwadrop/core/janitor"
	"kwadrop/core/queue"
	"kwadrop/core/resolver"
	"kwadrop/core/session"
	"kwadrop/db"
	"kwadrop/logger"
	"kwadrop/model"
	"kwadrop/repository"
	"kwadrop/storage"
)

// APIHandler handles all API requests.
type APIHandler struct {
	users    repository.UserRepository
	rooms    repository.RoomRepository
	engine   *queue.Engine
	sessions session.Store
	avatars  *storage.AvatarStore
	cfg      *config.Config
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(
	users repository.UserRepository,
	rooms repository.RoomRepository,
	engine *queue.Engine,
	sessions session.Store,
	avatars *storage.AvatarStore,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		users:    users,
		rooms:    rooms,
		engine:   engine,
		sessions: sessions,
		avatars:  avatars,
		cfg:      cfg,
	}
}

// Routes mounts every API endpoint on a new router.
func (h *APIHandler) Routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)
	router.Use(h.sessionMiddleware)

	router.HandleFunc("/create_session", h.CreateSessionHandler).Methods(http.MethodPost)

	router.HandleFunc("/create_user", h.CreateUserHandler).Methods(http.MethodPost)
	router.HandleFunc("/rename_user", h.RenameUserHandler).Methods(http.MethodPatch)
	router.HandleFunc("/update_avatar", h.UpdateAvatarHandler).Methods(http.MethodPatch)
	router.HandleFunc("/delete_user", h.DeleteUserHandler).Methods(http.MethodDelete)

	router.HandleFunc("/create_room", h.CreateRoomHandler).Methods(http.MethodPost)
	router.HandleFunc("/connect", h.ConnectHandler).Methods(http.MethodPost)
	router.HandleFunc("/disconnect", h.DisconnectHandler).Methods(http.MethodDelete)
	router.HandleFunc("/get_roommates", h.GetRoommatesHandler).Methods(http.MethodGet)
	router.HandleFunc("/edit_room", h.EditRoomHandler).Methods(http.MethodPatch)
	router.HandleFunc("/delete_room", h.DeleteRoomHandler).Methods(http.MethodDelete)

	router.HandleFunc("/add_song", h.AddSongHandler).Methods(http.MethodPost)
	router.HandleFunc("/playnext", h.PlayNextHandler).Methods(http.MethodPatch)
	router.HandleFunc("/playprev", h.PlayPrevHandler).Methods(http.MethodPatch)
	router.HandleFunc("/playthis", h.PlayThisHandler).Methods(http.MethodPatch)
	router.HandleFunc("/swap_songs", h.SwapSongsHandler).Methods(http.MethodPatch)
	router.HandleFunc("/delete_song", h.DeleteSongHandler).Methods(http.MethodDelete)
	router.HandleFunc("/get_current_song", h.GetCurrentSongHandler).Methods(http.MethodGet)
	router.HandleFunc("/get_playlist", h.GetPlaylistHandler).Methods(http.MethodGet)

	return router
}

// Start initializes every backing service and runs the HTTP server until
// an interrupt arrives.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
	})

	if err := storage.InitMinio(); err != nil {
		logger.Fatal("failed to initialize MinIO", logger.ErrorField(err))
	}

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.InitDB(); err != nil {
		logger.Fatal("failed to initialize database", logger.ErrorField(err))
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("failed to connect gorm", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	if err := db.AutoMigrateModels(&model.Room{}, &model.Association{}, &model.Song{}); err != nil {
		logger.Fatal("failed to migrate models", logger.ErrorField(err))
	}

	if err := db.ConnectRedis(cfg); err != nil {
		logger.Fatal("failed to connect to Redis", logger.ErrorField(err))
	}
	defer db.CloseRedis()

	userRepo := repository.NewMySQLUserRepository()
	roomRepo := repository.NewGormRoomRepository(db.GormDB)
	songRepo := repository.NewGormSongRepository(db.GormDB)

	res := resolver.NewClient(cfg.ResolverURL, cfg.ResolverTimeout)
	engine := queue.NewEngine(roomRepo, songRepo, res, cache.NewPlaylistCache())
	sessions := session.NewRedisStore(db.RedisClient, cfg.SessionTTL)
	avatars := storage.NewAvatarStore()

	apiHandler := NewAPIHandler(userRepo, roomRepo, engine, sessions, avatars, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := config.Watch(ctx); err != nil {
			logger.Warn("config watcher stopped", logger.ErrorField(err))
		}
	}()

	sweeper := janitor.New(userRepo, avatars, janitor.DefaultInterval)
	go sweeper.Run(ctx)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      apiHandler.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("server stopped")
}

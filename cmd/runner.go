package main

import (
	"context"
	"crypto/subtle"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/calliope-fm/calliope/internal/models"
	"github.com/calliope-fm/calliope/internal/repositories"
	"github.com/calliope-fm/calliope/internal/server"
	"github.com/calliope-fm/calliope/internal/services"
	"github.com/calliope-fm/calliope/internal/shared"
)

// Runner holds the dependencies shared by every CLI action.
type Runner struct {
	logger *log.Logger
}

// NewRunner creates a new [Runner].
func NewRunner(logger *log.Logger) *Runner {
	return &Runner{logger: logger}
}

// register returns the full command tree.
func (r *Runner) register() []*cli.Command {
	return []*cli.Command{
		serveCommand(r),
		setupCommand(r),
		bootstrapCommand(r),
	}
}

// backend bundles every wired store and service behind the HTTP surface.
type backend struct {
	config   *shared.Config
	auth     *services.AuthService
	accounts *services.AccountService
	music    *services.MusicService
	queue    *services.QueueService
	activity *services.ActivityService
	close    func()
}

func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	configPath := cmd.String("config")
	if _, err := os.Stat(configPath); err != nil {
		r.logger.Warn("config file not found, using defaults", "path", configPath)
		return shared.DefaultConfig(), nil
	}
	return shared.LoadConfig(configPath)
}

// buildBackend connects to every store and wires the service graph.
func (r *Runner) buildBackend(ctx context.Context, config *shared.Config) (*backend, error) {
	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	client, err := shared.NewRedis(config.Redis)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	blobs, err := repositories.NewBlobRepository(ctx, config.Minio)
	if err != nil {
		db.Close()
		client.Close()
		return nil, fmt.Errorf("failed to connect to object store: %w", err)
	}

	users := repositories.NewUserRepository(db)
	genres := repositories.NewGenreRepository(db)
	albums := repositories.NewAlbumRepository(db)
	tracks := repositories.NewTrackRepository(db)
	playlists := repositories.NewPlaylistRepository(db)
	activityRepo := repositories.NewActivityRepository(db)
	queueTTL := time.Duration(config.Redis.QueueTTLSeconds) * time.Second
	queues := repositories.NewQueueRepository(client, queueTTL)

	auth := services.NewAuthService(config.Auth)
	music := services.NewMusicService(genres, albums, tracks, users, playlists, blobs, r.logger)
	accounts := services.NewAccountService(users, playlists, music, auth, blobs, r.logger)

	return &backend{
		config:   config,
		auth:     auth,
		accounts: accounts,
		music:    music,
		queue:    services.NewQueueService(queues, tracks),
		activity: services.NewActivityService(activityRepo, tracks),
		close: func() {
			client.Close()
			db.Close()
		},
	}, nil
}

// Serve runs the HTTP API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	b, err := r.buildBackend(ctx, config)
	if err != nil {
		return err
	}
	defer b.close()

	srv := server.New(config.Server, r.logger, b.auth, b.accounts, b.music, b.queue, b.activity)

	addr := cmd.String("addr")
	if addr == "" {
		addr = config.Server.Addr()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx, addr)
}

// Setup initializes configuration and the database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		if config, err = shared.LoadConfig(configPath); err != nil {
			return fmt.Errorf("failed to load created config: %w", err)
		}
	}

	r.logger.Info("initializing database", "path", config.Database.Path)
	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return nil
}

// BootstrapAdmin creates an admin account when the provided key matches the
// configured one.
func (r *Runner) BootstrapAdmin(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	if config.Auth.AdminKey == "" {
		return fmt.Errorf("auth.admin_key is not configured")
	}
	if subtle.ConstantTimeCompare([]byte(cmd.String("key")), []byte(config.Auth.AdminKey)) != 1 {
		return fmt.Errorf("%w: admin key mismatch", shared.ErrForbidden)
	}

	b, err := r.buildBackend(ctx, config)
	if err != nil {
		return err
	}
	defer b.close()

	session, err := b.accounts.RegisterAdmin(ctx, models.NewUser{
		Name:     cmd.String("name"),
		Username: cmd.String("username"),
		Password: cmd.String("password"),
	})
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	r.logger.Info("admin account created", "username", cmd.String("username"), "location", session.Next)
	return nil
}

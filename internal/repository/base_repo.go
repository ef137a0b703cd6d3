package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mbeoliero/hearth/internal/config"
	"github.com/mbeoliero/hearth/internal/entity"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Repositories holds all repositories
type Repositories struct {
	DB           *gorm.DB
	Redis        *redis.Client
	Profile      *ProfileRepo
	Conversation *ConversationRepo
	Message      *MessageRepo
}

// NewRepositories creates all repositories
func NewRepositories(cfg *config.Config) (*Repositories, error) {
	db, err := OpenDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}

	return NewRepositoriesWithDB(db, initRedis(cfg)), nil
}

// NewRepositoriesWithDB wires repositories around existing connections. rdb may be nil.
func NewRepositoriesWithDB(db *gorm.DB, rdb *redis.Client) *Repositories {
	return &Repositories{
		DB:           db,
		Redis:        rdb,
		Profile:      NewProfileRepo(db),
		Conversation: NewConversationRepo(db),
		Message:      NewMessageRepo(db),
	}
}

// OpenDB opens the relational store selected by cfg.Driver
func OpenDB(cfg *config.DatabaseConfig, mode string) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if mode == "debug" {
		logLevel = logger.Info
	} else {
		logLevel = logger.Warn
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql", "":
		dialector = mysql.Open(cfg.DSN())
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Migrate creates or updates the schema
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&entity.Profile{}, &entity.Conversation{}, &entity.Message{})
}

// initRedis initializes Redis connection
func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// Close closes all connections
func (r *Repositories) Close() error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return err
	}
	if r.Redis == nil {
		return nil
	}
	return r.Redis.Close()
}

// Transaction executes fn in a transaction
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.DB.WithContext(ctx).Transaction(fn)
}

// TransactionWithOptions executes fn in a transaction with options
func (r *Repositories) TransactionWithOptions(ctx context.Context, opts *sql.TxOptions, fn func(tx *gorm.DB) error) error {
	return r.DB.WithContext(ctx).Transaction(fn, opts)
}

// CheckConnection checks if database and redis connections are alive
func (r *Repositories) CheckConnection(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		log.CtxError(ctx, "database ping failed: %v", err)
		return err
	}

	if r.Redis == nil {
		return nil
	}
	if err := r.Redis.Ping(ctx).Err(); err != nil {
		log.CtxError(ctx, "redis ping failed: %v", err)
		return err
	}

	return nil
}

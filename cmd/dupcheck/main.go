// Package main is the dupcheck server and operator CLI.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/totegamma/caselaw-dupcheck/internal/config"
	"github.com/totegamma/caselaw-dupcheck/internal/infra/database"
	"github.com/totegamma/caselaw-dupcheck/internal/infra/repository"
	"github.com/totegamma/caselaw-dupcheck/internal/matcher"
	"github.com/totegamma/caselaw-dupcheck/internal/service"
	"github.com/totegamma/caselaw-dupcheck/internal/usecase"
)

var (
	configPath string
	serverURL  string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dupcheck",
	Short: "Duplicate candidate detection for documentation units",
	Long: `dupcheck finds documentation units that probably describe the same decision
and keeps the duplicate relation table in sync with the current attributes.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the config file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8000", "dupcheck server URL")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(duplicatesCmd)
}

// app holds everything a process needs to run cycles.
type app struct {
	config     config.Config
	logger     *slog.Logger
	db         *gorm.DB
	rdb        *redis.Client
	mc         *memcache.Client
	relations  *usecase.RelationUsecase
	reconciler *usecase.ReconcileUsecase
	signal     *service.SignalService
	scheduler  *service.Scheduler
	closers    []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("failed to close resource", slog.String("error", err.Error()))
		}
	}
}

// setup loads the config and connects every backend.
// Redis and memcached are optional; without them the lock is process local
// and pending lookups are not cached.
func setup(ctx context.Context) (*app, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	level, err := config.ParseLogLevel(conf.Server.LogLevel)
	if err != nil {
		return nil, err
	}
	logger, closeLog := config.SetupLogger(conf.Server.LogFile, level)
	slog.SetDefault(logger)

	a := &app{config: conf, logger: logger, closers: []func() error{closeLog}}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.db = db
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}

	if conf.Server.RedisAddr != "" {
		rdb, err := database.NewRedis(ctx, conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.rdb = rdb
		a.closers = append(a.closers, rdb.Close)
	} else {
		logger.Warn("redis not configured, cycle lock is process local and events are not published")
	}

	a.mc = database.NewMemcached(conf.Server.MemcachedAddr)

	domainConf := conf.Domain()
	rules, err := matcher.RulesFor(domainConf.Rules)
	if err != nil {
		a.Close()
		return nil, err
	}
	m := matcher.NewMatcher(rules, domainConf.EligibleCategories, logger)

	relationRepo := repository.NewRelationRepository(db)
	attributeRepo := repository.NewAttributeIndexRepository(db)
	runRepo := repository.NewRunRepository(db)
	lock := repository.NewCycleLock(a.rdb, domainConf.LockTTL)

	var cache usecase.PendingCache
	if a.mc != nil {
		cache = repository.NewPendingCache(a.mc, domainConf.PendingCacheTTL, logger)
	}
	var publisher usecase.EventPublisher
	if a.rdb != nil {
		a.signal = service.NewSignalService(a.rdb, logger)
		publisher = a.signal
	}

	a.relations = usecase.NewRelationUsecase(relationRepo, cache)
	a.reconciler = usecase.NewReconcileUsecase(attributeRepo, relationRepo, runRepo, lock, publisher, cache, m, domainConf, logger)
	a.scheduler = service.NewScheduler(a.reconciler, conf.Dupcheck.Interval, conf.Dupcheck.FullEvery, conf.Dupcheck.QueueSize, logger)

	return a, nil
}

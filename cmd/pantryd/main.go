package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ha1tch/pantrycache/pkg/catalog"
	"github.com/ha1tch/pantrycache/pkg/config"
	"github.com/ha1tch/pantrycache/pkg/inputvalidation"
	"github.com/ha1tch/pantrycache/pkg/respcache"
	"github.com/ha1tch/pantrycache/pkg/restapi"
	"github.com/ha1tch/pantrycache/pkg/store"
)

func main() {
	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Logger().
		Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg := config.Default()
	config.LoadFromEnv(cfg)

	printBanner(cfg, logger)

	if cfg.StorageType != "sqlite" && cfg.StorageType != "redis" {
		if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
			logger.Fatal().Err(err).Msg("failed to create base directory")
		}
	}

	st, err := openStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer st.Close()

	db, err := catalog.NewDB(st, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build catalog")
	}
	defer db.Close()

	respCache := openRespCache(cfg, logger)
	defer respCache.Close()

	validator := inputvalidation.NewRequiredFieldValidator(map[string][]string{
		catalog.KindCategory:    {"name"},
		catalog.KindDescription: {"name"},
		catalog.KindInstance:    {"purchase_date", "expiration_date"},
	})

	srv := restapi.New(cfg, db, respCache, validator, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info().Msg("shutting down gracefully")
		os.Exit(0)
	}()

	logger.Info().Msg("pantryd ready to accept requests")
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	var storeConfig map[string]interface{}
	switch cfg.StorageType {
	case "sqlite":
		storeConfig = map[string]interface{}{"db_path": cfg.DBPath}
	case "redis":
		storeConfig = map[string]interface{}{"host": cfg.RedisHost, "port": cfg.RedisPort}
	default:
		storeConfig = map[string]interface{}{"base_dir": cfg.BaseDir}
	}
	return store.NewStore(cfg.StorageType, storeConfig)
}

func openRespCache(cfg *config.Config, logger zerolog.Logger) respcache.Cache {
	ttl := time.Duration(cfg.RespCacheTTL) * time.Second
	if cfg.RespCacheType == "redis" {
		redisCache, err := respcache.NewRedisCache(cfg.RedisHost, cfg.RedisPort, ttl)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to connect to redis, falling back to memory cache")
			return respcache.NewMemoryCache(cfg.RespCacheSize, ttl)
		}
		logger.Info().Msg("using redis response cache")
		return redisCache
	}
	logger.Info().Msg("using in-memory response cache")
	return respcache.NewMemoryCache(cfg.RespCacheSize, ttl)
}

func printBanner(cfg *config.Config, logger zerolog.Logger) {
	lightBlue := "\033[1;36m"
	reset := "\033[0m"

	fmt.Print(lightBlue)
	fmt.Println("//////////////////////////////////////////////")
	fmt.Println("//..........................................//")
	fmt.Println("//.....pantrycache..........................//")
	fmt.Println("//.....identity-mapped.entity.cache.........//")
	fmt.Println("//..........................................//")
	fmt.Println("//////////////////////////////////////////////")
	fmt.Print(reset)

	fmt.Println()
	fmt.Println("//////////////////////////// pantryd " + config.Version + " /////////////////////////////")
	fmt.Println("----------------------------------------------------------------------")
	fmt.Println("Server Configuration:")
	fmt.Printf("  Host: %s\n", cfg.Host)
	fmt.Printf("  Port: %d\n", cfg.Port)
	fmt.Println()
	fmt.Println("Storage Configuration:")
	fmt.Printf("  Type: %s\n", cfg.StorageType)
	if cfg.StorageType == "sqlite" {
		fmt.Printf("  DB path: %s\n", cfg.DBPath)
	}
	if cfg.StorageType == "redis" {
		fmt.Printf("  Redis: %s:%d\n", cfg.RedisHost, cfg.RedisPort)
	}
	fmt.Println()
	fmt.Println("Response Cache Configuration:")
	fmt.Printf("  Type: %s\n", cfg.RespCacheType)
	fmt.Printf("  TTL: %d seconds\n", cfg.RespCacheTTL)
	fmt.Println("----------------------------------------------------------------------")
	fmt.Println()
}

package cli

import (
	"log"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"docquiz/internal/api"
	"docquiz/internal/app"
	"docquiz/internal/cache"
	"docquiz/internal/config"
	inframemory "docquiz/internal/infra/memory"
	infraredis "docquiz/internal/infra/redis"
	"docquiz/internal/timer"
)

// deps is the wiring every subcommand shares.
type deps struct {
	cfg        config.Config
	controller *app.SessionController
	records    timer.RecordStore
}

func buildDeps(configPath string) (deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return deps{}, err
	}

	finalURL := baseURL
	if finalURL == "" {
		finalURL = cfg.API.BaseURL
	}
	if finalURL == "" {
		finalURL = "http://localhost:8000"
	}
	finalToken := token
	if finalToken == "" {
		finalToken = cfg.API.Token
	}

	opts := []api.Option{
		api.WithAuthExpiredHook(func() {
			log.Println("authentication expired; get a fresh token and try again")
			os.Exit(1)
		}),
	}
	if timeout := config.DurationOr(cfg.API.Timeout, 0); timeout > 0 {
		opts = append(opts, api.WithTimeout(timeout))
	}
	client := api.NewClient(finalURL, finalToken, opts...)

	var records timer.RecordStore = inframemory.NewRecordStore()
	if cfg.Redis.Addr != "" {
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ttl := config.DurationOr(cfg.Redis.TTL, 30*time.Minute)
		records = infraredis.NewRecordStore(redisClient, ttl)
	}

	return deps{
		cfg:        cfg,
		controller: app.NewSessionController(client, cache.New()),
		records:    records,
	}, nil
}

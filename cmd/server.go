package main

import (
	"context"
	"log"
	"time"

	"github.com/amankumarsingh77/playlist-exporter/internal/config"
	"github.com/amankumarsingh77/playlist-exporter/internal/server"
	"github.com/amankumarsingh77/playlist-exporter/internal/worker"
	"github.com/amankumarsingh77/playlist-exporter/pkg/db/aws"
	"github.com/amankumarsingh77/playlist-exporter/pkg/db/postgres"
	"github.com/amankumarsingh77/playlist-exporter/pkg/db/redis"
	"github.com/amankumarsingh77/playlist-exporter/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	goredis "github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
)

const connectTimeout = 10 * time.Second

func main() {
	log.Println("Starting playlist exporter")
	configFile := "config.yml"
	cfgFile, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("loadConfig: %v", err)
	}
	cfg, err := config.ParseConfig(cfgFile)
	if err != nil {
		log.Fatalf("parseConfig: %v", err)
	}

	appLogger := logger.NewApiLogger(cfg)
	appLogger.InitLogger()
	appLogger.Infof("AppVersion: %s, LogLevel: %s, Mode: %s", cfg.Server.AppVersion, cfg.Logger.Level, cfg.Server.Mode)

	if err := worker.PrepareWorkDir(cfg.Export.WorkDir); err != nil {
		appLogger.Fatalf("work dir: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	var psqlDB *sqlx.DB
	if cfg.PostgresEnabled() {
		psqlDB, err = postgres.NewPsqlDB(cfg)
		if err != nil {
			appLogger.Fatalf("could not connect to db: %v", err)
		}
		appLogger.Infof("db connected, status: %#v", psqlDB.Stats())
		defer psqlDB.Close()
	}

	var redisClient *goredis.Client
	if cfg.RedisEnabled() {
		redisClient, err = redis.NewRedisClient(ctx, cfg)
		if err != nil {
			appLogger.Fatalf("could not connect to redis: %v", err)
		}
		appLogger.Infof("redis connected")
		defer redisClient.Close()
	}

	var s3Client *s3.Client
	if cfg.S3Enabled() {
		s3Client, err = aws.NewAWSClient(ctx, cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.AccessKey, cfg.S3.SecretKey)
		if err != nil {
			appLogger.Fatalf("could not create s3 client: %v", err)
		}
		appLogger.Infof("s3 archive enabled, bucket: %s", cfg.S3.OutputBucket)
	}

	s := server.NewServer(cfg, psqlDB, redisClient, s3Client, clockwork.NewRealClock(), appLogger)
	if err = s.Run(); err != nil {
		appLogger.Errorf("server stopped: %v", err)
	}
}

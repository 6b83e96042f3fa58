package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amankumarsingh77/playlist-exporter/internal/exports"
	"github.com/amankumarsingh77/playlist-exporter/internal/models"
	"github.com/go-redis/redis/v8"
)

type exportRedisRepo struct {
	redisClient *redis.Client
	prefix      string
	channel     string
	ttl         time.Duration
}

func NewExportRedisRepo(redisClient *redis.Client, prefix, channel string, ttl time.Duration) exports.RedisRepository {
	return &exportRedisRepo{
		redisClient: redisClient,
		prefix:      prefix,
		channel:     channel,
		ttl:         ttl,
	}
}

func (r *exportRedisRepo) PublishStatus(ctx context.Context, job *models.ExportJob) error {
	statusKey := r.prefix + job.ID

	fields := map[string]interface{}{
		"job_id":  job.ID,
		"quality": string(job.Quality),
		"state":   string(job.State),
	}
	if job.Progress != nil {
		fields["progress"] = *job.Progress
	}
	if !job.FinishedAt.IsZero() {
		fields["finished_at"] = job.FinishedAt.Format(time.RFC3339)
	}
	if job.Error != nil {
		fields["error_kind"] = string(job.Error.Kind)
		fields["error_message"] = job.Error.Message
	}

	notification, err := json.Marshal(map[string]interface{}{
		"job_id":    job.ID,
		"state":     job.State,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	pipe := r.redisClient.Pipeline()
	pipe.HSet(ctx, statusKey, fields)
	pipe.Expire(ctx, statusKey, r.ttl)
	pipe.Publish(ctx, r.channel, notification)
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish status: %w", err)
	}
	return nil
}

func (r *exportRedisRepo) DeleteStatus(ctx context.Context, jobID string) error {
	if err := r.redisClient.Del(ctx, r.prefix+jobID).Err(); err != nil {
		return fmt.Errorf("failed to delete job status: %w", err)
	}
	return nil
}

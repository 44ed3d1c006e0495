package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/scholaris-ai/scholaris/internal/core"
	"github.com/scholaris-ai/scholaris/internal/models"
)

const (
	ingestQueueKey = "rag:ingest:queue"
	jobKeyPrefix   = "rag:ingest:job:"

	// Terminal job records stick around for a day so status polling after
	// completion keeps working, then expire.
	jobRetention = 24 * time.Hour

	dequeueBlock = 5 * time.Second
)

// RedisQueue is the production JobQueue: a Redis list as the work queue and
// one hash per job carrying state, progress and the terminal result.
type RedisQueue struct {
	client *redis.Client
}

// ConnectRedis dials Redis with bounded retries and returns a queue over the
// connection.
func ConnectRedis(ctx context.Context, addr, password string, maxRetries int) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        password,
		DB:              0,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     dequeueBlock + 3*time.Second,
		WriteTimeout:    3 * time.Second,
	})

	var err error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			backoff := time.Duration(1<<uint(i)) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		if err = client.Ping(ctx).Err(); err == nil {
			return &RedisQueue{client: client}, nil
		}
	}
	return nil, fmt.Errorf("connect redis after %d attempts: %w", maxRetries, err)
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func jobKey(id string) string { return jobKeyPrefix + id }

func (q *RedisQueue) Enqueue(ctx context.Context, payload models.IngestPayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	id := uuid.NewString()
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, jobKey(id), map[string]any{
		"state":     string(models.JobPending),
		"progress":  0,
		"processed": 0,
		"total":     0,
		"payload":   raw,
	})
	pipe.LPush(ctx, ingestQueueKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return id, nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Job, error) {
	res, err := q.client.BRPop(ctx, dequeueBlock, ingestQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("brpop: %w", err)
	}
	// BRPop returns [key, value].
	id := res[1]

	raw, err := q.client.HGet(ctx, jobKey(id), "payload").Result()
	if err != nil {
		return nil, fmt.Errorf("load job %s payload: %w", id, err)
	}
	var payload models.IngestPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decode job %s payload: %w", id, err)
	}
	return &Job{ID: id, Payload: payload}, nil
}

func (q *RedisQueue) MarkRunning(ctx context.Context, jobID string) error {
	return q.client.HSet(ctx, jobKey(jobID), "state", string(models.JobRunning)).Err()
}

func (q *RedisQueue) ReportProgress(ctx context.Context, jobID string, processed, total int) error {
	return q.client.HSet(ctx, jobKey(jobID), map[string]any{
		"progress":  progressPercent(processed, total),
		"processed": processed,
		"total":     total,
	}).Err()
}

func (q *RedisQueue) Complete(ctx context.Context, jobID string, result *models.IngestResult) error {
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, jobKey(jobID), map[string]any{
		"state":     string(models.JobCompleted),
		"progress":  100,
		"processed": result.Processed,
		"total":     result.Total,
	})
	pipe.Expire(ctx, jobKey(jobID), jobRetention)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisQueue) Fail(ctx context.Context, jobID string, reason string) error {
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, jobKey(jobID), map[string]any{
		"state": string(models.JobFailed),
		"error": reason,
	})
	pipe.Expire(ctx, jobKey(jobID), jobRetention)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisQueue) Status(ctx context.Context, jobID string) (*models.JobStatus, error) {
	fields, err := q.client.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: job %s", core.ErrNotFound, jobID)
	}

	status := &models.JobStatus{
		ID:    jobID,
		State: models.JobState(fields["state"]),
		Error: fields["error"],
	}
	status.Progress, _ = strconv.Atoi(fields["progress"])
	status.Processed, _ = strconv.Atoi(fields["processed"])
	status.Total, _ = strconv.Atoi(fields["total"])
	if status.State == models.JobCompleted {
		status.Result = &models.IngestResult{Processed: status.Processed, Total: status.Total}
	}
	return status, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

var _ JobQueue = (*RedisQueue)(nil)

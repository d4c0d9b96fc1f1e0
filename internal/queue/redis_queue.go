package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisQueue implements Queue on top of Redis lists (ready work) and a
// sorted set (deferred work, scored by due Unix time).
type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func readyListKey(funcName string) string   { return "cs:queue:ready:" + funcName }
func deferredSetKey(funcName string) string { return "cs:queue:deferred:" + funcName }

type wireEnvelope struct {
	JobID      string          `json:"job_id"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

func (q *RedisQueue) Submit(ctx context.Context, funcName, jobID string, payload []byte) (string, error) {
	queueJobID := uuid.NewString()
	env := wireEnvelope{JobID: jobID, Payload: payload, EnqueuedAt: time.Now().UTC()}
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	if err := q.client.RPush(ctx, readyListKey(funcName), data).Err(); err != nil {
		return "", fmt.Errorf("rpush: %w", err)
	}
	return queueJobID, nil
}

func (q *RedisQueue) Defer(ctx context.Context, funcName, queueJobID string, payload []byte, delay time.Duration) error {
	env := wireEnvelope{JobID: queueJobID, Payload: payload, EnqueuedAt: time.Now().UTC()}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	dueAt := time.Now().Add(delay).Unix()
	return q.client.ZAdd(ctx, deferredSetKey(funcName), &redis.Z{Score: float64(dueAt), Member: data}).Err()
}

// PromoteDue moves entries from the deferred set whose due time has passed
// onto the ready list for funcName. Callers run this periodically.
func (q *RedisQueue) PromoteDue(ctx context.Context, funcName string) error {
	now := float64(time.Now().Unix())
	due, err := q.client.ZRangeByScore(ctx, deferredSetKey(funcName), &redis.ZRangeBy{
		Min: "-inf", Max: fmt.Sprintf("%f", now),
	}).Result()
	if err != nil {
		return err
	}
	for _, member := range due {
		pipe := q.client.TxPipeline()
		pipe.RPush(ctx, readyListKey(funcName), member)
		pipe.ZRem(ctx, deferredSetKey(funcName), member)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (q *RedisQueue) Consume(ctx context.Context, funcName string) (Envelope, func() error, error) {
	result, err := q.client.BLPop(ctx, 0, readyListKey(funcName)).Result()
	if err != nil {
		return Envelope{}, nil, err
	}
	if len(result) != 2 {
		return Envelope{}, nil, fmt.Errorf("unexpected BLPOP result shape")
	}

	var env wireEnvelope
	if err := json.Unmarshal([]byte(result[1]), &env); err != nil {
		return Envelope{}, nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	out := Envelope{
		FuncName:   funcName,
		JobID:      env.JobID,
		Payload:    env.Payload,
		EnqueuedAt: env.EnqueuedAt,
	}
	// BLPOP already removed the task from the ready list and the ack is a
	// no-op: a task popped by a consumer that then fails is not
	// redelivered.
	ack := func() error { return nil }
	return out, ack, nil
}

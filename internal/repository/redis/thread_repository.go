// Package redis persists conversation threads, keyed per owner so one flushed
// thread never leaks into another account.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"soul-journal-be/pkg/store"
)

const maxTurnsPerThread = 50

type ThreadRepository struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewThreadRepository(client *goredis.Client, ttl time.Duration) *ThreadRepository {
	return &ThreadRepository{client: client, ttl: ttl}
}

func threadKey(ownerID, threadID string) string {
	return fmt.Sprintf("thread:%s:%s", ownerID, threadID)
}

// Load returns the thread, or an empty one when it does not exist yet.
func (r *ThreadRepository) Load(ctx context.Context, ownerID, threadID string) (store.Thread, error) {
	raw, err := r.client.Get(ctx, threadKey(ownerID, threadID)).Result()
	if errors.Is(err, goredis.Nil) {
		return store.Thread{ID: threadID, OwnerID: ownerID}, nil
	}
	if err != nil {
		return store.Thread{}, err
	}

	var thread store.Thread
	if err := json.Unmarshal([]byte(raw), &thread); err != nil {
		// A corrupt thread is unrecoverable; start fresh rather than fail
		// the whole request.
		return store.Thread{ID: threadID, OwnerID: ownerID}, nil
	}
	return thread, nil
}

func (r *ThreadRepository) Save(ctx context.Context, thread store.Thread) error {
	if len(thread.Turns) > maxTurnsPerThread {
		thread.Turns = thread.Turns[len(thread.Turns)-maxTurnsPerThread:]
	}
	thread.UpdatedAt = time.Now().UTC()

	raw, err := json.Marshal(thread)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, threadKey(thread.OwnerID, thread.ID), raw, r.ttl).Err()
}

// AppendTurns loads, appends, and saves in one call.
func (r *ThreadRepository) AppendTurns(ctx context.Context, ownerID, threadID string, turns ...store.Turn) error {
	thread, err := r.Load(ctx, ownerID, threadID)
	if err != nil {
		return err
	}
	thread.Turns = append(thread.Turns, turns...)
	return r.Save(ctx, thread)
}

func (r *ThreadRepository) Delete(ctx context.Context, ownerID, threadID string) error {
	return r.client.Del(ctx, threadKey(ownerID, threadID)).Err()
}

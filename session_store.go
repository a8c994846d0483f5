// Session storage

package main

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const SESSION_KEY_PREFIX = "classtream:session:"
const STATE_KEY_PREFIX = "classtream:state:"

const STATE_TTL = 10 * time.Minute

// SessionStore - Maps interactive session ids to authenticated
// subject identifiers, and holds short-lived login state nonces.
type SessionStore interface {
	// GetSubject returns the subject of a session, or the
	// empty string if the session does not exist or expired.
	GetSubject(ctx context.Context, sessionId string) (string, error)

	// PutSubject stores a session.
	PutSubject(ctx context.Context, sessionId string, subject string) error

	// DeleteSession removes a session.
	DeleteSession(ctx context.Context, sessionId string) error

	// PutState stores a login state nonce with the URL to return to.
	PutState(ctx context.Context, state string, returnTo string) error

	// TakeState consumes a login state nonce, returning the stored
	// return URL. A nonce can only be taken once.
	TakeState(ctx context.Context, state string) (string, bool, error)
}

// NewSessionStore creates the session store from env configuration.
// Stand-alone mode keeps sessions in memory, everything else uses Redis.
func NewSessionStore() SessionStore {
	ttl := 12 * time.Hour
	customTTL := os.Getenv("SESSION_TTL_HOURS")
	if customTTL != "" {
		hours, e := strconv.Atoi(customTTL)
		if e == nil && hours > 0 {
			ttl = time.Duration(hours) * time.Hour
		}
	}

	if os.Getenv("STAND_ALONE") == "YES" {
		return NewMemorySessionStore(ttl)
	}

	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		redisHost = "localhost"
	}

	redisPort := os.Getenv("REDIS_PORT")
	if redisPort == "" {
		redisPort = "6379"
	}

	redisPassword := os.Getenv("REDIS_PASSWORD")

	redisTLS := os.Getenv("REDIS_TLS")

	var redisClient *redis.Client

	if redisTLS == "YES" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:      redisHost + ":" + redisPort,
			Password:  redisPassword,
			TLSConfig: &tls.Config{},
		})
	} else {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     redisHost + ":" + redisPort,
			Password: redisPassword,
		})
	}

	LogInfo("[REDIS] Using " + redisHost + ":" + redisPort + " for session storage")

	return &RedisSessionStore{
		client: redisClient,
		ttl:    ttl,
	}
}

// RedisSessionStore - Session storage backed by Redis,
// shared between gateway replicas.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func (store *RedisSessionStore) GetSubject(ctx context.Context, sessionId string) (string, error) {
	subject, err := store.client.Get(ctx, SESSION_KEY_PREFIX+sessionId).Result()

	if err == redis.Nil {
		return "", nil
	}

	return subject, err
}

func (store *RedisSessionStore) PutSubject(ctx context.Context, sessionId string, subject string) error {
	return store.client.Set(ctx, SESSION_KEY_PREFIX+sessionId, subject, store.ttl).Err()
}

func (store *RedisSessionStore) DeleteSession(ctx context.Context, sessionId string) error {
	return store.client.Del(ctx, SESSION_KEY_PREFIX+sessionId).Err()
}

func (store *RedisSessionStore) PutState(ctx context.Context, state string, returnTo string) error {
	return store.client.Set(ctx, STATE_KEY_PREFIX+state, returnTo, STATE_TTL).Err()
}

func (store *RedisSessionStore) TakeState(ctx context.Context, state string) (string, bool, error) {
	returnTo, err := store.client.GetDel(ctx, STATE_KEY_PREFIX+state).Result()

	if err == redis.Nil {
		return "", false, nil
	}

	if err != nil {
		return "", false, err
	}

	return returnTo, true, nil
}

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemorySessionStore - In-process session storage for
// stand-alone deployments. Not shared between replicas.
type MemorySessionStore struct {
	mutex *sync.Mutex

	ttl      time.Duration
	sessions map[string]memoryEntry
	states   map[string]memoryEntry
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		mutex:    &sync.Mutex{},
		ttl:      ttl,
		sessions: make(map[string]memoryEntry),
		states:   make(map[string]memoryEntry),
	}
}

func getMemoryEntry(entries map[string]memoryEntry, key string) (string, bool) {
	entry, found := entries[key]

	if !found {
		return "", false
	}

	if time.Now().After(entry.expires) {
		delete(entries, key)
		return "", false
	}

	return entry.value, true
}

func (store *MemorySessionStore) GetSubject(ctx context.Context, sessionId string) (string, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	subject, _ := getMemoryEntry(store.sessions, sessionId)

	return subject, nil
}

func (store *MemorySessionStore) PutSubject(ctx context.Context, sessionId string, subject string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	store.sessions[sessionId] = memoryEntry{
		value:   subject,
		expires: time.Now().Add(store.ttl),
	}

	return nil
}

func (store *MemorySessionStore) DeleteSession(ctx context.Context, sessionId string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	delete(store.sessions, sessionId)

	return nil
}

func (store *MemorySessionStore) PutState(ctx context.Context, state string, returnTo string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	store.states[state] = memoryEntry{
		value:   returnTo,
		expires: time.Now().Add(STATE_TTL),
	}

	return nil
}

func (store *MemorySessionStore) TakeState(ctx context.Context, state string) (string, bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	returnTo, found := getMemoryEntry(store.states, state)

	if found {
		delete(store.states, state)
	}

	return returnTo, found, nil
}

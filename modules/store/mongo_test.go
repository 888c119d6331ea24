package store

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

const defaultTestMongoURI = "mongodb://localhost:27017"

var (
	mongoCheckOnce sync.Once
	mongoReachErr  error
)

func testMongoURI() string {
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		return uri
	}
	return defaultTestMongoURI
}

// openTestMongo opens a MongoStore on a throwaway database that is dropped
// when the test ends. It fails fast once a first connection attempt has
// found no server.
func openTestMongo(t *testing.T) (*MongoStore, error) {
	t.Helper()

	mongoCheckOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s, err := OpenMongo(ctx, testMongoURI(), "cchat_ping", 2*time.Second)
		if err != nil {
			mongoReachErr = err
			return
		}
		_ = s.db.Drop(context.Background())
		_ = s.Close(context.Background())
	})
	if mongoReachErr != nil {
		return nil, mongoReachErr
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	database := "cchat_test_" + uuid.New().String()[:8]
	s, err := OpenMongo(ctx, testMongoURI(), database, 5*time.Second)
	if err != nil {
		return nil, err
	}

	t.Cleanup(func() {
		ctx := context.Background()
		_ = s.db.Drop(ctx)
		_ = s.Close(ctx)
	})
	return s, nil
}

// setupTestMongo skips the test when MongoDB is not available.
func setupTestMongo(t *testing.T) *MongoStore {
	t.Helper()
	s, err := openTestMongo(t)
	if err != nil {
		t.Skipf("MongoDB not available at %s: %v", testMongoURI(), err)
	}
	return s
}

func TestMongoStore_Open(t *testing.T) {
	s := setupTestMongo(t)
	ctx := context.Background()

	if s.Driver() != "mongo" {
		t.Errorf("Driver() = %q, want mongo", s.Driver())
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping() unexpected error: %v", err)
	}

	cur, err := s.messages().Indexes().List(ctx)
	if err != nil {
		t.Fatalf("Indexes().List() error = %v", err)
	}
	var indexes []map[string]any
	if err := cur.All(ctx, &indexes); err != nil {
		t.Fatalf("decode indexes: %v", err)
	}
	if len(indexes) < 2 {
		t.Errorf("messages has %d indexes, want _id plus roomKey/createdAt", len(indexes))
	}
}

func TestMongoStore_OpenUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := OpenMongo(ctx, "mongodb://127.0.0.1:1", "cchat", 200*time.Millisecond); err == nil {
		t.Error("OpenMongo() against a closed port should fail")
	}
}

func TestStoreModule_Mongo(t *testing.T) {
	setupTestMongo(t)
	ctx := context.Background()

	m := NewModule(Config{
		Driver:        "mongo",
		MongoURI:      testMongoURI(),
		MongoDatabase: "cchat_test_module",
		Timeout:       5 * time.Second,
	})
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}
	defer m.Stop(ctx)

	if h := m.Health(ctx); !h.Healthy {
		t.Errorf("Health() = %+v, want healthy", h)
	}
}

//go:build integration

package pgstore

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/inercia/go-llm-unify/pkg/llm"
	"github.com/inercia/go-llm-unify/pkg/memory/kv"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("llm_test"),
		postgres.WithUsername("llm"),
		postgres.WithPassword("llm"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		log.Fatalf("pgstore: failed to start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("pgstore: failed to get connection string: %v", err)
	}

	testPool, err = pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("pgstore: failed to create pool: %v", err)
	}
	if err := New(testPool).EnsureSchema(ctx); err != nil {
		log.Fatalf("pgstore: failed to create schema: %v", err)
	}

	code := m.Run()

	testPool.Close()
	if err := testcontainers.TerminateContainer(pgContainer); err != nil {
		log.Printf("pgstore: failed to terminate container: %v", err)
	}
	os.Exit(code)
}

func TestIntegration_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	m := kv.New(New(testPool))
	user := "it-" + t.Name()

	created, err := m.CreateSession(ctx, user, "s1", "be brief")
	require.NoError(t, err)

	got, err := m.GetSession(ctx, user, "s1")
	require.NoError(t, err)
	assert.Equal(t, created.SystemPrompt, got.SystemPrompt)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
	assert.Empty(t, got.Messages)

	require.NoError(t, m.AddMessage(ctx, user, "s1", llm.NewTextMessage(llm.RoleUser, "hello")))
	got, err = m.GetSession(ctx, user, "s1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)

	ids, err := m.ListSessions(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)

	require.NoError(t, m.ClearSession(ctx, user, "s1"))
	_, err = m.GetSession(ctx, user, "s1")
	assert.ErrorIs(t, err, llm.ErrSessionNotFound)
}

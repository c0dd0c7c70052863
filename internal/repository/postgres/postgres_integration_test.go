//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"featureboard/internal/apperr"
	"featureboard/internal/config"
	"featureboard/internal/database"
	"featureboard/internal/models"
	"featureboard/internal/repository"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "board",
				"POSTGRES_PASSWORD": "board",
				"POSTGRES_DB":       "featureboard",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) }) //nolint:errcheck

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}

	dsn := fmt.Sprintf("postgres://board:board@%s:%s/featureboard?sslmode=disable", host, port.Port())
	pool, err := database.Open(ctx, config.DatabaseConfig{DSN: dsn})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := database.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// Migrations are idempotent.
	if err := database.Migrate(ctx, pool); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	return pool
}

func TestPostgresRepositories(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	users := NewUserRepo(pool)
	tickets := NewTicketRepo(pool)
	votes := NewVoteRepo(pool)
	admins := NewAdminRepo(pool)

	alice, err := users.Create(ctx, "Alice@Example.com", "Alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := users.Create(ctx, "alice@example.com", "Again", "hash"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("duplicate user error = %v, want conflict", err)
	}

	tk := &models.Ticket{Title: "Dark mode", AuthorID: alice.ID, Images: []models.Image{{URL: "http://x/images/a.png"}}}
	if err := tickets.Create(ctx, tk); err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	if tk.Status != models.StatusQueued || tk.ID == "" {
		t.Fatalf("created ticket = %+v", tk)
	}

	t.Run("votes toggle", func(t *testing.T) {
		res, err := votes.Toggle(ctx, alice.ID, tk.ID)
		if err != nil || res.Action != models.VoteAdded || res.Upvotes != 1 {
			t.Fatalf("first toggle = %+v, %v", res, err)
		}
		ids, _ := votes.VotedTicketIDs(ctx, alice.ID)
		if len(ids) != 1 || ids[0] != tk.ID {
			t.Errorf("voted ids = %v", ids)
		}
		res, err = votes.Toggle(ctx, alice.ID, tk.ID)
		if err != nil || res.Action != models.VoteRemoved || res.Upvotes != 0 {
			t.Fatalf("second toggle = %+v, %v", res, err)
		}
	})

	t.Run("comments and get", func(t *testing.T) {
		c, err := tickets.AddComment(ctx, tk.ID, alice.ID, "Yes please")
		if err != nil {
			t.Fatal(err)
		}
		if c.Author != "Alice" {
			t.Errorf("author = %q", c.Author)
		}
		got, err := tickets.Get(ctx, tk.ID)
		if err != nil || got == nil {
			t.Fatalf("get = %v, %v", got, err)
		}
		if len(got.Comments) != 1 || len(got.Images) != 1 {
			t.Errorf("ticket = %+v", got)
		}
		if missing, err := tickets.Get(ctx, "not-a-uuid"); missing != nil || err != nil {
			t.Errorf("get malformed id = %v, %v", missing, err)
		}
	})

	t.Run("status visibility and list", func(t *testing.T) {
		if _, err := tickets.SetStatus(ctx, tk.ID, models.StatusInProgress); err != nil {
			t.Fatal(err)
		}
		if _, err := tickets.SetHidden(ctx, tk.ID, true); err != nil {
			t.Fatal(err)
		}
		items, total, err := tickets.List(ctx, repository.TicketFilter{})
		if err != nil || total != 0 || len(items) != 0 {
			t.Errorf("public list = %d items, total %d, %v", len(items), total, err)
		}
		items, total, err = tickets.List(ctx, repository.TicketFilter{IncludeHidden: true, Status: models.StatusInProgress})
		if err != nil || total != 1 || items[0].Status != models.StatusInProgress {
			t.Errorf("admin list = %+v, total %d, %v", items, total, err)
		}
		sum, err := tickets.Summary(ctx)
		if err != nil || sum.Total != 1 || sum.Hidden != 1 || sum.ByStatus[models.StatusInProgress] != 1 {
			t.Errorf("summary = %+v, %v", sum, err)
		}
	})

	t.Run("admins", func(t *testing.T) {
		a, err := admins.Add(ctx, "root@example.com", "Root")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := admins.Add(ctx, "ROOT@example.com", "Dup"); !errors.Is(err, apperr.ErrConflict) {
			t.Errorf("duplicate admin error = %v", err)
		}
		if err := admins.Remove(ctx, a.ID); !errors.Is(err, apperr.ErrConflict) {
			t.Errorf("remove last admin error = %v", err)
		}
		b, err := admins.Add(ctx, "second@example.com", "Second")
		if err != nil {
			t.Fatal(err)
		}
		if err := admins.Remove(ctx, b.ID); err != nil {
			t.Errorf("remove second admin: %v", err)
		}
		if n, _ := admins.Count(ctx); n != 1 {
			t.Errorf("count = %d", n)
		}
	})

	t.Run("delete cascades", func(t *testing.T) {
		ok, err := tickets.Delete(ctx, tk.ID)
		if err != nil || !ok {
			t.Fatalf("delete = %v, %v", ok, err)
		}
		if ok, _ := tickets.Delete(ctx, tk.ID); ok {
			t.Error("second delete reported a row")
		}
	})
}

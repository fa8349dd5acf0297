package userstore_test

import (
	"sync"
	"testing"

	userstore "github.com/dalemusser/focushub/internal/app/store/users"
	"github.com/dalemusser/focushub/internal/app/system/indexes"
	"github.com/dalemusser/focushub/internal/domain/models"
	"github.com/dalemusser/focushub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestUpsert_CreatesThenRefreshes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	first, err := store.Upsert(ctx, models.User{TelegramID: 42, Username: "ann"})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if first.ID.IsZero() {
		t.Fatal("expected an internal id")
	}

	second, err := store.Upsert(ctx, models.User{TelegramID: 42, Username: "ann_renamed"})
	if err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("ID: got %v, want %v", second.ID, first.ID)
	}
	if second.Username != "ann_renamed" {
		t.Errorf("Username: got %q, want %q", second.Username, "ann_renamed")
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
}

func TestUpsert_ConcurrentFirstCallsConverge(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	store := userstore.New(db)

	const n = 8
	ids := make([]primitive.ObjectID, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := store.Upsert(ctx, models.User{TelegramID: 777})
			errs[i] = err
			if u != nil {
				ids[i] = u.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("call %d: got id %v, want %v", i, ids[i], ids[0])
		}
	}
	count, err := db.Collection("users").CountDocuments(ctx, map[string]any{"telegram_id": 777})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("rows: got %d, want 1", count)
	}
}

func TestGetByTelegramID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.GetByTelegramID(ctx, 1); err != mongo.ErrNoDocuments {
		t.Errorf("got %v, want mongo.ErrNoDocuments", err)
	}
}

func TestListByIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := fixtures.CreateUser(ctx, "a")
	b := fixtures.CreateUser(ctx, "b")
	fixtures.CreateUser(ctx, "c")

	got, err := store.ListByIDs(ctx, []primitive.ObjectID{a.ID, b.ID, primitive.NewObjectID()})
	if err != nil {
		t.Fatalf("ListByIDs failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len: got %d, want 2", len(got))
	}

	empty, err := store.ListByIDs(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("ListByIDs(nil): got %v, %v", empty, err)
	}
}

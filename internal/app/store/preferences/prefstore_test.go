package prefstore_test

import (
	"testing"
	"time"

	prefstore "github.com/dalemusser/focushub/internal/app/store/preferences"
	"github.com/dalemusser/focushub/internal/domain/models"
	"github.com/dalemusser/focushub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestGet_Defaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := prefstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := primitive.NewObjectID()
	p, err := store.Get(ctx, user)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.UserID != user || p.Enabled {
		t.Errorf("defaults: got %+v", p)
	}
	if p.IntervalHours != models.DefaultIntervalHours || p.StartHour != models.DefaultStartHour || p.EndHour != models.DefaultEndHour {
		t.Errorf("default window: got %d/%d/%d", p.IntervalHours, p.StartHour, p.EndHour)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name string
		in   models.NotificationPreference
		want models.NotificationPreference
	}{
		{
			name: "low",
			in:   models.NotificationPreference{IntervalHours: 0, StartHour: -3, EndHour: -1, TZOffsetMinutes: -900},
			want: models.NotificationPreference{IntervalHours: 1, StartHour: 0, EndHour: 0, TZOffsetMinutes: -840},
		},
		{
			name: "high",
			in:   models.NotificationPreference{IntervalHours: 48, StartHour: 30, EndHour: 24, TZOffsetMinutes: 901},
			want: models.NotificationPreference{IntervalHours: 24, StartHour: 23, EndHour: 23, TZOffsetMinutes: 840},
		},
		{
			name: "in range",
			in:   models.NotificationPreference{IntervalHours: 4, StartHour: 9, EndHour: 21, TZOffsetMinutes: 180},
			want: models.NotificationPreference{IntervalHours: 4, StartHour: 9, EndHour: 21, TZOffsetMinutes: 180},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := prefstore.Clamp(tt.in); got != tt.want {
				t.Errorf("Clamp: got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSave_ClampsAndEnablingResetsLastSent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := prefstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := primitive.NewObjectID()
	sent := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	fixtures.CreatePreference(ctx, models.NotificationPreference{
		UserID: user, Enabled: false, IntervalHours: 4, StartHour: 9, EndHour: 21, LastSentAt: &sent,
	})

	saved, err := store.Save(ctx, models.NotificationPreference{
		UserID: user, Enabled: false, IntervalHours: 99, StartHour: 9, EndHour: 21,
	})
	if err != nil {
		t.Fatalf("Save(disabled) failed: %v", err)
	}
	if saved.IntervalHours != models.MaxIntervalHours {
		t.Errorf("IntervalHours: got %d, want %d", saved.IntervalHours, models.MaxIntervalHours)
	}
	if saved.LastSentAt == nil || !saved.LastSentAt.Equal(sent) {
		t.Errorf("disabled write should keep last_sent_at, got %v", saved.LastSentAt)
	}

	saved, err = store.Save(ctx, models.NotificationPreference{
		UserID: user, Enabled: true, IntervalHours: 4, StartHour: 9, EndHour: 21,
	})
	if err != nil {
		t.Fatalf("Save(enabled) failed: %v", err)
	}
	if saved.LastSentAt != nil {
		t.Errorf("enabling should reset last_sent_at, got %v", saved.LastSentAt)
	}

	enabled, err := store.ListEnabled(ctx)
	if err != nil {
		t.Fatalf("ListEnabled failed: %v", err)
	}
	if len(enabled) != 1 || enabled[0].UserID != user {
		t.Errorf("ListEnabled: got %v", enabled)
	}
}

func TestClaimReleaseMarkSent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := prefstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := primitive.NewObjectID()
	if _, err := store.Save(ctx, models.NotificationPreference{UserID: user, Enabled: true, IntervalHours: 4, StartHour: 0, EndHour: 0}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	until := now.Add(2 * time.Minute)

	ok, err := store.Claim(ctx, user, nil, now, until)
	if err != nil || !ok {
		t.Fatalf("first Claim: ok=%v err=%v", ok, err)
	}
	if ok, _ := store.Claim(ctx, user, nil, now, until); ok {
		t.Error("second Claim should see the live lease")
	}
	if ok, _ := store.Claim(ctx, user, nil, until.Add(time.Second), until.Add(time.Minute)); !ok {
		t.Error("Claim after lease expiry should succeed")
	}

	if err := store.Release(ctx, user); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if ok, _ := store.Claim(ctx, user, nil, now, until); !ok {
		t.Error("Claim after Release should succeed")
	}

	ok, err = store.MarkSent(ctx, user, nil, now)
	if err != nil || !ok {
		t.Fatalf("MarkSent: ok=%v err=%v", ok, err)
	}
	if ok, _ := store.MarkSent(ctx, user, nil, now); ok {
		t.Error("MarkSent with a stale observed value should not apply")
	}

	if ok, _ := store.Claim(ctx, user, nil, now, until); ok {
		t.Error("Claim with stale observed last_sent_at should fail")
	}
	if ok, _ := store.Claim(ctx, user, &now, now, until); !ok {
		t.Error("Claim with current observed last_sent_at should succeed")
	}
}

func TestTZOffsets(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := prefstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := primitive.NewObjectID()
	b := primitive.NewObjectID()
	if _, err := store.Save(ctx, models.NotificationPreference{UserID: a, IntervalHours: 4, TZOffsetMinutes: 180}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.TZOffsets(ctx, []primitive.ObjectID{a, b})
	if err != nil {
		t.Fatalf("TZOffsets failed: %v", err)
	}
	if got[a] != 180 {
		t.Errorf("offset a: got %d, want 180", got[a])
	}
	if _, ok := got[b]; ok {
		t.Error("user without a row should be absent")
	}
}

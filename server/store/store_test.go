package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"spacedan/shared/protocol"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSelectMessagesOrdering(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	db.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})

	for _, c := range []string{"one", "two", "three"} {
		if _, err := db.InsertMessage(ctx, protocol.NewMessage{ChannelID: "global", UserID: "u", Content: c}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.InsertMessage(ctx, protocol.NewMessage{ChannelID: "games", UserID: "u", Content: "other"}); err != nil {
		t.Fatal(err)
	}

	asc, err := db.SelectMessages(ctx, "global", 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(asc) != 3 || asc[0].Content != "one" || asc[2].Content != "three" {
		t.Fatalf("asc = %+v", asc)
	}

	desc, err := db.SelectMessages(ctx, "global", 2, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(desc) != 2 || desc[0].Content != "three" || desc[1].Content != "two" {
		t.Fatalf("desc = %+v", desc)
	}
}

func TestSameMillisecondKeepsInsertOrder(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	db.SetClock(func() time.Time { return fixed })

	for _, c := range []string{"a", "b", "c"} {
		if _, err := db.InsertMessage(ctx, protocol.NewMessage{ChannelID: "global", UserID: "u", Content: c}); err != nil {
			t.Fatal(err)
		}
	}
	rows, _ := db.SelectMessages(ctx, "global", 0, false)
	if rows[0].Content != "a" || rows[1].Content != "b" || rows[2].Content != "c" {
		t.Errorf("order = %v %v %v", rows[0].Content, rows[1].Content, rows[2].Content)
	}
}

func TestInsertRejectsEmpty(t *testing.T) {
	db := openTest(t)
	if _, err := db.InsertMessage(context.Background(), protocol.NewMessage{ChannelID: "global", Content: "   "}); err == nil {
		t.Fatal("blank content accepted")
	}
}

func TestProfiles(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	p, err := db.CreateProfile(ctx, " Dan ", "hash", 200)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateProfile(ctx, "dan", "hash", 200); !errors.Is(err, ErrUsernameUsed) {
		t.Fatalf("duplicate username: %v", err)
	}

	got, hash, err := db.ProfileByUsername(ctx, "DAN")
	if err != nil || hash != "hash" || got.ID != p.ID || got.Balance != 200 {
		t.Fatalf("lookup: %+v %q %v", got, hash, err)
	}
	if _, err := db.Profile(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing profile: %v", err)
	}

	list, err := db.SelectProfiles(ctx, protocol.Eq("username", "Dan"), 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("select: %+v %v", list, err)
	}
	if _, err := db.SelectProfiles(ctx, protocol.Eq("password_hash", "x"), 10); err == nil {
		t.Error("filter on private column allowed")
	}
}

func TestNonces(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	err := db.Tx(ctx, func(tx *sql.Tx) error {
		if _, ok, err := NonceResultTx(ctx, tx, "n1"); err != nil || ok {
			t.Fatalf("fresh nonce reported spent: %v %v", ok, err)
		}
		if err := SaveNonceTx(ctx, tx, old, "n1", "award_coins", `{"success":true}`); err != nil {
			return err
		}
		return SaveNonceTx(ctx, tx, old.Add(48*time.Hour), "n2", "award_coins", `{}`)
	})
	if err != nil {
		t.Fatal(err)
	}

	_ = db.Tx(ctx, func(tx *sql.Tx) error {
		res, ok, err := NonceResultTx(ctx, tx, "n1")
		if err != nil || !ok || res != `{"success":true}` {
			t.Fatalf("stored nonce: %q %v %v", res, ok, err)
		}
		return nil
	})

	n, err := db.PruneNonces(ctx, old.Add(time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("prune = %d %v", n, err)
	}
}

func TestTxRollsBack(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	p, _ := db.CreateProfile(ctx, "dan", "h", 10)

	boom := errors.New("boom")
	err := db.Tx(ctx, func(tx *sql.Tx) error {
		if err := SetBalanceTx(ctx, tx, p.ID, 999); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	got, _ := db.Profile(ctx, p.ID)
	if got.Balance != 10 {
		t.Errorf("balance = %d after rollback", got.Balance)
	}
}

package history

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/iabetor/soundmirror/internal/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("打开数据库失败: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}
	return NewStore(db)
}

func TestStore_RecordAndRecent(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	ctx := context.Background()
	if err := store.Record(ctx, Entry{Engine: "estimate", Lang: "en-US", Rate: 1, Text: "one two three", WordCount: 3, DurationMs: 900, Success: true}); err != nil {
		t.Fatalf("Record 失败: %v", err)
	}
	if err := store.Record(ctx, Entry{Engine: "native", Lang: "en", Rate: 1.5, Text: "hello world", WordCount: 2, Error: "unsupported"}); err != nil {
		t.Fatalf("Record 失败: %v", err)
	}

	entries, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent 失败: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("期望 2 条，得到 %d 条", len(entries))
	}

	latest := entries[0]
	if latest.Engine != "native" || latest.Success || latest.Error != "unsupported" {
		t.Errorf("最新记录不匹配: %+v", latest)
	}
	if latest.Rate != 1.5 {
		t.Errorf("rate = %v, want 1.5", latest.Rate)
	}
	if latest.ID == "" {
		t.Error("ID 不应为空")
	}
	if !latest.CreatedAt.Equal(base.Add(2 * time.Second)) {
		t.Errorf("CreatedAt = %v", latest.CreatedAt)
	}

	oldest := entries[1]
	if oldest.DurationMs != 900 || !oldest.Success || oldest.WordCount != 3 {
		t.Errorf("最早记录不匹配: %+v", oldest)
	}
}

func TestStore_RecentLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := store.Record(ctx, Entry{Text: "x", Rate: 1}); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("期望 3 条，得到 %d 条", len(entries))
	}

	entries, err = store.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 5 {
		t.Errorf("limit=0 应使用默认值，得到 %d 条", len(entries))
	}
}

func TestStore_RecentEmpty(t *testing.T) {
	store := newTestStore(t)
	entries, err := store.Recent(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("期望空列表，得到 %v", entries)
	}
}

func TestStore_RecordSaturatedDuration(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Record(ctx, Entry{Engine: "estimate", Rate: 1e-30, Text: "one", DurationMs: math.MaxUint64, Success: true}); err != nil {
		t.Fatalf("Record 失败: %v", err)
	}
	entries, err := store.Recent(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].DurationMs != math.MaxInt64 {
		t.Errorf("entries = %+v, want duration %d", entries, uint64(math.MaxInt64))
	}
}

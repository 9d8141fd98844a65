// Package history 把每次 speak_text 调用记录到 SQLite，供排查和统计使用。
// 命令结果从不依赖这里的数据。
package history

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/iabetor/soundmirror/internal/database"
	"github.com/iabetor/soundmirror/internal/logger"
)

const (
	// DefaultLimit 是 Recent 未指定条数时返回的记录数。
	DefaultLimit = 20
	// MaxLimit 是 Recent 单次最多返回的记录数。
	MaxLimit = 500

	timeLayout = "2006-01-02 15:04:05.000"
)

// Entry 一次 speak_text 调用的记录。
type Entry struct {
	ID         string    `json:"id"`
	Engine     string    `json:"engine"`
	Lang       string    `json:"lang"`
	Rate       float32   `json:"rate"`
	Text       string    `json:"text"`
	WordCount  int       `json:"word_count"`
	DurationMs uint64    `json:"duration_ms"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store 合成历史存储（SQLite）。
type Store struct {
	db  *database.DB
	now func() time.Time
}

// NewStore 创建历史存储，db 需要已经执行过 Migrate。
func NewStore(db *database.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Record 写入一条记录，ID 和 CreatedAt 为空时自动填充。
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}

	// SQLite INTEGER 是有符号 64 位
	duration := int64(math.MaxInt64)
	if e.DurationMs <= math.MaxInt64 {
		duration = int64(e.DurationMs)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO speech_history (id, engine, lang, rate, text, word_count, duration_ms, success, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Engine, e.Lang, float64(e.Rate), e.Text, e.WordCount, duration,
		e.Success, e.Error, e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("[history] 写入记录失败: %w", err)
	}
	logger.Debugf("[history] 已记录 %s (engine=%s, success=%v)", e.ID, e.Engine, e.Success)
	return nil
}

// Recent 按时间倒序返回最近的记录。limit <= 0 时使用 DefaultLimit，最多 MaxLimit 条。
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, engine, lang, rate, text, word_count, duration_ms, success, error, created_at
		 FROM speech_history
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("[history] 查询记录失败: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e         Entry
			rate      float64
			duration  int64
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Engine, &e.Lang, &rate, &e.Text, &e.WordCount,
			&duration, &e.Success, &e.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("[history] 读取记录失败: %w", err)
		}
		e.Rate = float32(rate)
		if duration > 0 {
			e.DurationMs = uint64(duration)
		}
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("[history] 读取记录失败: %w", err)
	}
	return entries, nil
}

// parseTime 兼容驱动把 DATETIME 列还原成 time.Time 后再转回字符串的情况。
func parseTime(s string) time.Time {
	for _, layout := range []string{timeLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

package speech

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// CachingEngine 在内存中缓存合成结果，同一句话以相同语言和语速重复朗读时不再调用引擎。
// 缓存按占用字节数限额，超出后淘汰最久未使用的条目。
type CachingEngine struct {
	engine Engine

	mu      sync.Mutex
	maxSize int64
	size    int64
	tick    uint64
	index   map[cacheKey]*cacheEntry
}

type cacheKey struct {
	text string
	lang string
	rate float32
}

type cacheEntry struct {
	syn      Synthesis
	size     int64
	lastUsed uint64
}

// NewCachingEngine 创建带缓存的引擎。maxSizeMB <= 0 时不缓存，直接返回 engine。
func NewCachingEngine(engine Engine, maxSizeMB int) Engine {
	if maxSizeMB <= 0 {
		return engine
	}
	return &CachingEngine{
		engine:  engine,
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		index:   make(map[cacheKey]*cacheEntry),
	}
}

// Synthesize 实现 Engine 接口。只缓存成功的结果。
func (c *CachingEngine) Synthesize(ctx context.Context, req Request) (*Synthesis, error) {
	key := cacheKey{text: req.Text, lang: strings.ToLower(strings.TrimSpace(req.Lang)), rate: req.Rate}
	if syn, ok := c.lookup(key); ok {
		return syn, nil
	}

	syn, err := c.engine.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	c.store(key, syn)
	return syn, nil
}

func (c *CachingEngine) lookup(key cacheKey) (*Synthesis, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.index[key]
	if !ok {
		return nil, false
	}
	c.tick++
	entry.lastUsed = c.tick
	return entry.copy(), true
}

func (c *CachingEngine) store(key cacheKey, syn *Synthesis) {
	entry := &cacheEntry{
		syn:  *syn,
		size: synthesisSize(key, syn),
	}
	entry.syn.Boundaries = append([]WordBoundary(nil), syn.Boundaries...)
	if entry.size > c.maxSize {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.index[key]; ok {
		c.size -= old.size
	}
	c.tick++
	entry.lastUsed = c.tick
	c.index[key] = entry
	c.size += entry.size
	c.evictLocked()
}

// evictLocked 按最后使用顺序淘汰，直到总占用不超过上限（调用方需持有锁）。
func (c *CachingEngine) evictLocked() {
	if c.size <= c.maxSize {
		return
	}

	keys := make([]cacheKey, 0, len(c.index))
	for k := range c.index {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.index[keys[i]].lastUsed < c.index[keys[j]].lastUsed
	})

	for _, k := range keys {
		if c.size <= c.maxSize {
			break
		}
		c.size -= c.index[k].size
		delete(c.index, k)
	}
}

// Len 返回缓存条目数。
func (c *CachingEngine) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Voices 实现 VoiceLister 接口，不缓存。
func (c *CachingEngine) Voices(ctx context.Context, tag string) ([]string, error) {
	lister, ok := c.engine.(VoiceLister)
	if !ok {
		return []string{}, nil
	}
	return lister.Voices(ctx, tag)
}

// Close 关闭底层引擎。
func (c *CachingEngine) Close() error {
	return Close(c.engine)
}

// copy 返回可以交给调用方的结果，样本只读共享，边界单独复制。
func (e *cacheEntry) copy() *Synthesis {
	syn := e.syn
	syn.Boundaries = append([]WordBoundary(nil), e.syn.Boundaries...)
	return &syn
}

func synthesisSize(key cacheKey, syn *Synthesis) int64 {
	size := int64(len(syn.Samples))*4 + int64(len(key.text))
	for _, b := range syn.Boundaries {
		size += int64(len(b.Word)) + 16
	}
	return size
}

// Package app 根据配置组装引擎链、播放器、历史库和命令层，
// 服务端和 smctl 共用同一套组装逻辑。
package app

import (
	"errors"
	"fmt"

	"github.com/iabetor/soundmirror/internal/audio"
	"github.com/iabetor/soundmirror/internal/command"
	"github.com/iabetor/soundmirror/internal/config"
	"github.com/iabetor/soundmirror/internal/database"
	"github.com/iabetor/soundmirror/internal/history"
	"github.com/iabetor/soundmirror/internal/logger"
	"github.com/iabetor/soundmirror/internal/speech"
)

// App 持有一次运行所需的全部组件。
type App struct {
	Surface *command.Surface
	// History 未启用历史记录时为 nil。
	History *history.Store
	Engines []string

	db     *database.DB
	player *audio.Player
}

// New 按配置创建 App。播放设备不可用时只记录警告，不影响合成。
func New(cfg *config.Config) (*App, error) {
	a := &App{}

	engine := speech.NewEngine(cfg.Speech)
	a.Engines = engine.Names()

	if cfg.Speech.CacheMaxMB > 0 {
		logger.Infof("[app] 合成缓存已启用 (上限 %dMB)", cfg.Speech.CacheMaxMB)
	}
	opts := command.Options{
		Engine:        speech.NewCachingEngine(engine, cfg.Speech.CacheMaxMB),
		Timeout:       cfg.Speech.Timeout(),
		MaxTextLength: cfg.Speech.MaxTextLength,
		WaitPlayback:  cfg.Playback.Wait,
	}

	if cfg.Playback.Enabled {
		player, err := audio.NewPlayer()
		if err != nil {
			logger.Warnf("[app] 初始化播放器失败，将只返回时长不发声: %v", err)
		} else {
			a.player = player
			opts.Player = player
		}
	}

	if cfg.Database.History {
		db, err := database.Open(cfg.Database.Path)
		if err != nil {
			a.closeResources()
			_ = engine.Close()
			return nil, fmt.Errorf("打开历史数据库失败: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			a.closeResources()
			_ = engine.Close()
			return nil, err
		}
		a.db = db
		a.History = history.NewStore(db)
		opts.History = a.History
	}

	a.Surface = command.New(opts)
	logger.Infof("[app] 命令层已就绪 (engines=%v, playback=%v, history=%v)",
		a.Engines, a.player != nil, a.History != nil)
	return a, nil
}

// Close 依次停止命令层（含后台播放）、关闭播放器和数据库。
func (a *App) Close() error {
	var errs []error
	if a.Surface != nil {
		if err := a.Surface.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	if a.player != nil {
		a.player.Close()
		a.player = nil
	}
	if a.db != nil {
		err := a.db.Close()
		a.db = nil
		return err
	}
	return nil
}

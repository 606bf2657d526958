package run

import (
	"time"

	"github.com/John-Robertt/spritegrab/internal/domain"
	"github.com/John-Robertt/spritegrab/internal/download"
)

// Observer 把“运行进度”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（展示由 CLI 决定）
// - 事件只来自一个 goroutine，实现不需要并发安全
type Observer interface {
	download.Progress

	// OnCatalog 在列表页解析完成后调用。
	OnCatalog(pageURL, baseClassify string, cat domain.Catalog, cursor domain.ResumeCursor)
	// OnPoolStart 在开始处理某个分类前调用；startAsset 是该分类的起始资源下标。
	OnPoolStart(idx, total int, pool domain.AssetPool, startAsset int)
	// OnRunDone 在 run 结束时调用（成功或失败都会调用）。
	OnRunDone(rr domain.RunReport, err error, dur time.Duration)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/John-Robertt/spritegrab/internal/app/run"
	"github.com/John-Robertt/spritegrab/internal/domain"
	"github.com/John-Robertt/spritegrab/internal/infra/fsx"
	"github.com/John-Robertt/spritegrab/internal/provider"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 把 run 事件渲染成终端进度行（写 stderr）。
//
// keepalive：单个资源下载很久（大 zip）时定期输出一行，避免看起来像卡死。
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	lastPrinted time.Time

	current   string // 正在下载的资源标题
	assetFrom time.Time

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 10 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnCatalog(pageURL, baseClassify string, cat domain.Catalog, cursor domain.ResumeCursor) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "[%s] spritegrab run\n", now.Format("15:04:05"))
	fmt.Fprintf(p.w, "  url: %s\n", truncate(pageURL, 160))
	fmt.Fprintf(p.w, "  base: %s\n", baseClassify)
	fmt.Fprintf(p.w, "  catalog: pools=%d assets=%d\n", len(cat), cat.TotalAssets())
	if cursor != (domain.ResumeCursor{}) {
		fmt.Fprintf(p.w, "  resume: %s\n", cursor)
	}
	fmt.Fprintln(p.w)

	p.lastPrinted = now
	if !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnPoolStart(idx, total int, pool domain.AssetPool, startAsset int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "分类[%d]（共 %d）%s 声明=%s 解析=%d",
		idx, total, pool.Classify, formatCount(pool.ClassifyCount), len(pool.Assets),
	)
	if startAsset > 0 {
		fmt.Fprintf(p.w, " 从下标 %d 开始", startAsset)
	}
	fmt.Fprintln(p.w)
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnAssetStart(pos, expected int, a domain.Asset) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = a.Title
	p.assetFrom = time.Now()

	fmt.Fprintf(p.w, "  [%d/%s] 下载中 %s\n", pos, formatCount(expected), a.Title)
	p.lastPrinted = p.assetFrom
}

func (p *progressUI) OnAssetDone(pos, expected int, res domain.AssetResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dur := time.Since(p.assetFrom)
	p.current = ""

	if res.OK() {
		fmt.Fprintf(p.w, "  [%d/%s] OK %s %s (%s)\n",
			pos, formatCount(expected), res.Asset.Title, humanize.Bytes(uint64(res.Bytes)), formatShortDuration(dur),
		)
	} else {
		fmt.Fprintf(p.w, "  [%d/%s] FAIL %s: %s (%s)\n",
			pos, formatCount(expected), res.Asset.Title, truncate(humanizeError(res.Err), 160), formatShortDuration(dur),
		)
	}
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnRunDone(rr domain.RunReport, err error, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopTickerLocked()

	s := rr.Summary
	fmt.Fprintln(p.w)
	if err == nil {
		fmt.Fprintf(p.w, "完成: pools=%d downloaded=%d failed=%d size=%s elapsed=%s\n",
			s.Pools, s.Downloaded, s.Failed, humanize.Bytes(uint64(s.Bytes)), formatElapsed(dur),
		)
		if s.Failed > 0 {
			p.printResumeHintLocked(rr)
		}
		p.lastPrinted = time.Now()
		return
	}

	fmt.Fprintf(p.w, "失败: %s\n", humanizeError(err))
	fmt.Fprintf(p.w, "  已完成: downloaded=%d failed=%d size=%s elapsed=%s\n",
		s.Downloaded, s.Failed, humanize.Bytes(uint64(s.Bytes)), formatElapsed(dur),
	)
	p.printResumeHintLocked(rr)
	p.lastPrinted = time.Now()
}

// printResumeHintLocked 根据最后一个失败的资源给出下一次的输入。
func (p *progressUI) printResumeHintLocked(rr domain.RunReport) {
	ci, res, ok := rr.LastFailure()
	if !ok {
		return
	}
	fmt.Fprintf(p.w, "  断点: %s %d %d\n", rr.URL, ci, res.Index)
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 10 * time.Second
	}

	stop := p.stopCh
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.current != "" && time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "  下载中: %s elapsed=%s\n",
						truncate(p.current, 120), formatElapsed(time.Since(p.assetFrom)),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func (p *progressUI) stopTickerLocked() {
	if !p.tickerStarted {
		return
	}
	close(p.stopCh)
	p.tickerStarted = false
}

// humanizeError 把常见错误翻译成可操作的提示。
func humanizeError(err error) string {
	if err == nil {
		return ""
	}

	prefix := ""
	var de *domain.DownloadError
	if errors.As(err, &de) {
		prefix = "资源 " + de.AssetPath + "："
	}

	var (
		blocked *provider.BlockedError
		status  *provider.HTTPStatusError
		se      *domain.StructureError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return "已取消"
	case errors.As(err, &blocked):
		return prefix + "站点返回了验证页（" + blocked.Reason + "），请稍后重试或更换代理"
	case errors.As(err, &status):
		switch status.StatusCode {
		case 403:
			return prefix + "HTTP 403 拒绝访问，检查 User-Agent/Referer 或代理"
		case 404:
			return prefix + "HTTP 404 资源不存在"
		case 429:
			return prefix + "HTTP 429 请求过于频繁，稍后再试"
		default:
			return prefix + status.Error()
		}
	case errors.As(err, &se):
		return se.Error() + "（页面结构可能已变化）"
	case fsx.IsPathTypeConflict(err):
		return "输出路径冲突：" + err.Error()
	case fsx.IsCrossDevice(err):
		return "跨设备重命名失败：" + err.Error()
	}
	if prefix != "" && de.Err != nil {
		return prefix + de.Err.Error()
	}
	return err.Error()
}

func formatCount(n int) string {
	if n <= 0 {
		return "?"
	}
	return fmt.Sprintf("%d", n)
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

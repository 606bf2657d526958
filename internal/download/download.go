// Package download 按顺序把一个分类的资源下载到确定的本地路径。
package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/John-Robertt/spritegrab/internal/domain"
	"github.com/John-Robertt/spritegrab/internal/infra/fsx"
	"github.com/John-Robertt/spritegrab/internal/provider"
)

// Policy 决定单个资源失败后的行为。
type Policy int

const (
	// PolicyHalt：第一个失败即终止（默认）。
	PolicyHalt Policy = iota
	// PolicySkip：记录失败后继续下一个资源。
	PolicySkip
)

func (p Policy) String() string {
	switch p {
	case PolicySkip:
		return "skip"
	default:
		return "halt"
	}
}

// ParsePolicy 解析 "halt"/"skip"（空串视为 halt）。
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "halt":
		return PolicyHalt, nil
	case "skip":
		return PolicySkip, nil
	default:
		return PolicyHalt, fmt.Errorf("未知的失败策略：%q（只能是 halt 或 skip）", s)
	}
}

// Progress 接收下载进度事件。实现不需要并发安全：事件只来自一个 goroutine。
type Progress interface {
	// OnAssetStart 在发起请求前调用；pos 从 1 开始，expected 是分类声明的数量。
	OnAssetStart(pos, expected int, a domain.Asset)
	// OnAssetDone 在资源落盘（或失败）后调用。
	OnAssetDone(pos, expected int, res domain.AssetResult)
}

// Downloader 把资源逐个下载到 <OutRoot>/<base>/<classify>/<title>.<ext>。
type Downloader struct {
	Client  *http.Client
	BaseURL string // 站点源，例如 https://www.spriters-resource.com
	OutRoot string
	Policy  Policy

	Progress Progress
	Log      *zap.Logger
}

// PoolDir 计算分类的输出目录。
func (d *Downloader) PoolDir(baseClassify, classify string) string {
	return filepath.Join(d.OutRoot, fsx.SanitizeName(baseClassify), fsx.SanitizeName(classify))
}

// FileName 计算资源的文件名：标题去掉第一个 '?' 及之后的内容，清洗后拼上扩展名。
func FileName(a domain.Asset) string {
	title := a.Title
	if i := strings.IndexByte(title, '?'); i >= 0 {
		title = title[:i]
	}
	return fsx.SanitizeName(title) + "." + a.Ext
}

// DownloadAssets 从 startAssetIndex（含）开始顺序下载 assets。
//
// 约束：
// - 严格串行：上一个资源写完才开始下一个
// - expectedCount 只用于进度展示；循环边界是 len(assets)
// - PolicyHalt 下第一个失败即返回（已完成的结果仍然返回）
// - 目录创建失败总是致命的
func (d *Downloader) DownloadAssets(ctx context.Context, baseClassify, classify string, expectedCount int, assets []domain.Asset, startAssetIndex int) ([]domain.AssetResult, error) {
	if d.Client == nil {
		return nil, errors.New("http client 不能为空")
	}
	if startAssetIndex < 0 {
		return nil, fmt.Errorf("资源下标不能为负数：%d", startAssetIndex)
	}
	log := d.logger()

	dir := d.PoolDir(baseClassify, classify)
	if err := fsx.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("创建目录 %q 失败：%w", dir, err)
	}

	if expectedCount != len(assets) {
		log.Debug("声明数量与实际解析数量不一致",
			zap.String("classify", classify),
			zap.Int("declared", expectedCount),
			zap.Int("actual", len(assets)),
		)
	}
	if startAssetIndex >= len(assets) {
		return nil, nil
	}

	results := make([]domain.AssetResult, 0, len(assets)-startAssetIndex)
	for i := startAssetIndex; i < len(assets); i++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		a := assets[i]
		if d.Progress != nil {
			d.Progress.OnAssetStart(i+1, expectedCount, a)
		}

		res := d.downloadOne(ctx, dir, i, a)
		results = append(results, res)
		if d.Progress != nil {
			d.Progress.OnAssetDone(i+1, expectedCount, res)
		}

		if res.OK() {
			log.Debug("资源已保存", zap.String("file", res.File), zap.Int64("bytes", res.Bytes))
			continue
		}
		if d.Policy == PolicyHalt || ctx.Err() != nil {
			return results, res.Err
		}
		log.Warn("资源下载失败，按策略跳过",
			zap.String("classify", classify),
			zap.Int("index", i),
			zap.String("path", a.Path),
			zap.Error(res.Err),
		)
	}
	return results, nil
}

func (d *Downloader) downloadOne(ctx context.Context, dir string, idx int, a domain.Asset) domain.AssetResult {
	u := strings.TrimRight(d.BaseURL, "/") + a.Path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Failed(idx, a, &domain.DownloadError{AssetPath: a.Path, URL: u, Err: err})
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return domain.Failed(idx, a, &domain.DownloadError{AssetPath: a.Path, URL: u, Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		hs := &provider.HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
		return domain.Failed(idx, a, &domain.DownloadError{AssetPath: a.Path, URL: u, Err: hs})
	}

	name := FileName(a)
	n, err := fsx.WriteStreamAtomic(dir, name, resp.Body)
	if err != nil {
		return domain.Failed(idx, a, fmt.Errorf("写入 %q 失败：%w", filepath.Join(dir, name), err))
	}
	return domain.Ok(idx, a, filepath.Join(dir, name), n)
}

func (d *Downloader) logger() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}

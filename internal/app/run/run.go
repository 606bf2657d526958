package run

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/John-Robertt/spritegrab/internal/domain"
	"github.com/John-Robertt/spritegrab/internal/download"
	"github.com/John-Robertt/spritegrab/internal/infra/httpx"
	"github.com/John-Robertt/spritegrab/internal/provider"
)

// Runner 串起一次 run：抓取列表页 => 解析 Catalog => 按断点顺序下载。
type Runner struct {
	Source provider.Source

	// HTTP 是客户端身份与网络策略；Referer 为空时使用站点源 + "/"。
	HTTP httpx.Options

	// BaseURL 为空时使用列表页 URL 的源（scheme://host）。
	BaseURL string
	OutRoot string
	Policy  download.Policy

	Observer Observer
	Log      *zap.Logger
}

// Run 执行一次 run。
//
// 断点语义：从第 cursor.ClassifyIndex 个分类开始；该分类从 cursor.AssetIndex 开始，
// 之后的分类一律从 0 开始。任何 StructureError / DownloadError / 文件系统错误都会终止本次 run。
//
// 返回的 RunReport 总是有效（失败时包含已完成的部分）。
func (r *Runner) Run(ctx context.Context, pageURL string, cursor domain.ResumeCursor) (domain.RunReport, error) {
	started := time.Now()
	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		URL:       strings.TrimSpace(pageURL),
		Cursor:    cursor,
		StartedAt: started,
	}
	log := r.logger().With(zap.String("run_id", rr.RunID))

	finish := func(err error) (domain.RunReport, error) {
		rr.FinishedAt = time.Now()
		rr.Finalize()
		if r.Observer != nil {
			r.Observer.OnRunDone(rr, err, time.Since(started))
		}
		if err != nil {
			log.Error("run 失败", zap.Error(err))
		} else {
			log.Info("run 完成",
				zap.Int("downloaded", rr.Summary.Downloaded),
				zap.Int("failed", rr.Summary.Failed),
			)
		}
		return rr, err
	}

	if err := cursor.Validate(); err != nil {
		return finish(err)
	}
	base, err := BaseClassify(rr.URL)
	if err != nil {
		return finish(err)
	}
	rr.BaseClassify = base

	origin := r.BaseURL
	if origin == "" {
		if origin, err = SiteOrigin(rr.URL); err != nil {
			return finish(err)
		}
	}

	log.Info("开始 run", zap.String("url", rr.URL), zap.String("cursor", cursor.String()))

	cat, err := r.catalog(ctx, rr.URL, origin)
	if err != nil {
		return finish(err)
	}
	if r.Observer != nil {
		r.Observer.OnCatalog(rr.URL, base, cat, cursor)
	}
	log.Debug("列表页解析完成", zap.Int("pools", len(cat)), zap.Int("assets", cat.TotalAssets()))

	if cursor.ClassifyIndex >= len(cat) {
		log.Warn("分类下标超出范围，无事可做",
			zap.Int("classify_index", cursor.ClassifyIndex),
			zap.Int("pools", len(cat)),
		)
		return finish(nil)
	}

	assetClient, err := httpx.NewAssetClient(r.httpOptions(origin))
	if err != nil {
		return finish(err)
	}
	d := &download.Downloader{
		Client:   assetClient,
		BaseURL:  origin,
		OutRoot:  r.OutRoot,
		Policy:   r.Policy,
		Progress: r.Observer,
		Log:      log,
	}

	for i := cursor.ClassifyIndex; i < len(cat); i++ {
		pool := cat[i]
		start := cursor.AssetStartFor(i)
		if r.Observer != nil {
			r.Observer.OnPoolStart(i, len(cat), pool, start)
		}

		results, err := d.DownloadAssets(ctx, base, pool.Classify, pool.ClassifyCount, pool.Assets, start)
		rr.Pools = append(rr.Pools, domain.PoolReport{
			Index:         i,
			Classify:      pool.Classify,
			ClassifyCount: pool.ClassifyCount,
			StartAsset:    start,
			Results:       results,
		})
		if err != nil {
			return finish(fmt.Errorf("分类[%d] %q：%w", i, pool.Classify, err))
		}
	}
	return finish(nil)
}

// Catalog 只抓取并解析列表页，不下载（用于 list 命令挑选断点）。
func (r *Runner) Catalog(ctx context.Context, pageURL string) (domain.Catalog, error) {
	origin := r.BaseURL
	if origin == "" {
		o, err := SiteOrigin(pageURL)
		if err != nil {
			return nil, err
		}
		origin = o
	}
	return r.catalog(ctx, strings.TrimSpace(pageURL), origin)
}

func (r *Runner) catalog(ctx context.Context, pageURL, origin string) (domain.Catalog, error) {
	if r.Source == nil {
		return nil, errors.New("source 不能为空")
	}
	c, err := httpx.NewPageClient(r.httpOptions(origin))
	if err != nil {
		return nil, err
	}
	html, err := r.Source.Fetch(ctx, pageURL, c)
	if err != nil {
		return nil, &StageError{Stage: StageFetch, URL: pageURL, Err: err}
	}
	r.logger().Debug("列表页已抓取", zap.String("url", pageURL), zap.Int("bytes", len(html)))

	cat, err := r.Source.Parse(html)
	if err != nil {
		return nil, &StageError{Stage: StageParse, URL: pageURL, Err: err}
	}
	return cat, nil
}

func (r *Runner) httpOptions(origin string) httpx.Options {
	opts := r.HTTP
	if strings.TrimSpace(opts.Referer) == "" {
		opts.Referer = strings.TrimRight(origin, "/") + "/"
	}
	return opts
}

func (r *Runner) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

const (
	StageFetch = "fetch"
	StageParse = "parse"
)

// StageError 标记列表页在哪个阶段失败（fetch / parse），方便上层给出可操作的提示。
type StageError struct {
	Stage string
	URL   string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("列表页 %s 失败（%s）：%v", e.Stage, e.URL, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// BaseClassify 取 URL 最后一个非空路径段（先去掉末尾的 '/'）；路径为空时回退为 host。
func BaseClassify(pageURL string) (string, error) {
	u, err := parsePageURL(pageURL)
	if err != nil {
		return "", err
	}
	p := strings.TrimSuffix(u.Path, "/")
	segs := strings.Split(p, "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(segs[i]); s != "" {
			return s, nil
		}
	}
	return u.Host, nil
}

// SiteOrigin 返回 scheme://host。
func SiteOrigin(pageURL string) (string, error) {
	u, err := parsePageURL(pageURL)
	if err != nil {
		return "", err
	}
	return u.Scheme + "://" + u.Host, nil
}

func parsePageURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("url 无效：%w", err)
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("url 无效（需要 http/https 完整地址）：%q", raw)
	}
	return u, nil
}

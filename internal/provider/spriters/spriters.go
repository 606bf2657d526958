package spriters

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/John-Robertt/spritegrab/internal/domain"
	providerx "github.com/John-Robertt/spritegrab/internal/provider"
)

// DefaultBaseURL 是站点源；资源 URL = 源 + Asset.Path。
const DefaultBaseURL = "https://www.spriters-resource.com"

// 页面结构约定（均为 class 名）。
const (
	classSection    = "section"
	classAssetCount = "asset-count"
	classContainer  = "icondisplay"
	classHeader     = "iconheader"
	classBody       = "iconbody"
	classZip        = "icon-zip"

	thumbSegment = "asset_icons"
	assetSegment = "assets"
)

var _ providerx.Source = Provider{}

// Provider 实现分类列表页的抓取与解析。
//
// 约束：
// - Fetch/Parse 不做缓存/限速（由上层统一控制）
// - Parse 必须是纯函数（只依赖输入 html）
type Provider struct{}

func (Provider) Name() string { return "spriters" }

// Fetch 抓取分类列表页（例如 https://www.spriters-resource.com/pc_computer/somegame/）。
func (Provider) Fetch(ctx context.Context, pageURL string, c *http.Client) ([]byte, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	if strings.TrimSpace(pageURL) == "" {
		return nil, errors.New("url 不能为空")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// 反爬验证页通常是 403/503 + 挑战脚本；不尝试绕过。
	if isChallengePage(resp.StatusCode, b) {
		return nil, &providerx.BlockedError{URL: pageURL, Reason: "challenge"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &providerx.HTTPStatusError{
			URL:        pageURL,
			StatusCode: resp.StatusCode,
			Location:   resp.Header.Get("Location"),
		}
	}
	if len(b) == 0 {
		return nil, errors.New("empty response body")
	}
	return b, nil
}

func isChallengePage(status int, body []byte) bool {
	if status != http.StatusForbidden && status != http.StatusServiceUnavailable {
		return false
	}
	return bytes.Contains(body, []byte("cf-chl")) || bytes.Contains(body, []byte("Just a moment..."))
}

// Parse 把列表页 HTML 解析为 Catalog。
func (Provider) Parse(b []byte) (domain.Catalog, error) {
	if len(b) == 0 {
		return nil, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	return Extract(doc)
}

// Extract 按文档顺序把每个 .section 解析为一个 AssetPool。
// 任意分类找不到资源容器都会返回 *domain.StructureError，且不返回部分结果。
func Extract(doc *goquery.Document) (domain.Catalog, error) {
	if doc == nil {
		return nil, errors.New("document 为空")
	}

	var (
		out     domain.Catalog
		failure error
	)
	doc.Find("." + classSection).EachWithBreak(func(i int, section *goquery.Selection) bool {
		classify, count := sectionLabel(section)

		container, ok := FindAssetContainerFor(section)
		if !ok {
			failure = &domain.StructureError{Section: i, Classify: classify, Reason: "之后没有找到 ." + classContainer + " 资源容器"}
			return false
		}

		out = append(out, domain.AssetPool{
			Classify:      classify,
			ClassifyCount: count,
			Assets:        extractAssets(container),
		})
		return true
	})
	if failure != nil {
		return nil, failure
	}
	return out, nil
}

// sectionLabel 扫描 section 的直接子节点：
// 文本节点给出分类名（最后一个非空文本为准），.asset-count 元素给出声明数量。
func sectionLabel(section *goquery.Selection) (classify string, count int) {
	section.Contents().Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		switch {
		case n.Type == html.TextNode:
			if t := strings.ReplaceAll(strings.TrimSpace(n.Data), "\n", ""); t != "" {
				classify = t
			}
		case n.Type == html.ElementNode && s.HasClass(classAssetCount):
			count = parseCount(s.Text())
		}
	})
	return classify, count
}

var countTrimmer = strings.NewReplacer("[", "", "]", "")

// parseCount 解析 "[12]" 这类计数；解析失败按 0 处理（数量只用于展示）。
func parseCount(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(countTrimmer.Replace(s)))
	if err != nil {
		return 0
	}
	return n
}

// FindAssetContainerFor 返回分类对应的资源容器。
//
// 页面约定：容器是 section 之后的第二个兄弟节点（中间隔着一个空白文本节点），
// 且带 .icondisplay。这个位置约定很脆弱，所有依赖它的逻辑只经过这里。
func FindAssetContainerFor(section *goquery.Selection) (*goquery.Selection, bool) {
	if section == nil || section.Length() == 0 {
		return nil, false
	}
	n := section.Get(0).NextSibling
	if n == nil {
		return nil, false
	}
	n = n.NextSibling
	if n == nil || n.Type != html.ElementNode {
		return nil, false
	}
	sel := goquery.NewDocumentFromNode(n).Selection
	if !sel.HasClass(classContainer) {
		return nil, false
	}
	return sel, true
}

func extractAssets(container *goquery.Selection) []domain.Asset {
	assets := make([]domain.Asset, 0, 16)
	container.Children().Each(func(_ int, el *goquery.Selection) {
		if a, ok := extractAsset(el); ok {
			assets = append(assets, a)
		}
	})
	return assets
}

func extractAsset(el *goquery.Selection) (domain.Asset, bool) {
	title := strings.TrimSpace(el.Find("." + classHeader).Text())
	isArchive := el.Find("."+classZip).Length() > 0

	src, _ := el.Find("." + classBody).Find("img").First().Attr("src")
	src = strings.TrimSpace(src)
	if src == "" {
		return domain.Asset{}, false
	}

	// 缩略图路径 => 真实资源路径
	p := strings.Replace(src, thumbSegment, assetSegment, 1)
	p, ext := ResolveExt(p, isArchive)

	if title == "" || p == "" {
		return domain.Asset{}, false
	}
	return domain.Asset{Title: title, Path: p, Ext: ext}, true
}

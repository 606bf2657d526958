package domain

// 允许落盘的扩展名。未知扩展名一律按默认图片格式（ExtPNG）处理。
const (
	ExtPNG = "png"
	ExtJPG = "jpg"
	ExtZIP = "zip"
)

// SupportedExts 是扩展名白名单；顺序有意义：第一个元素是默认图片格式。
var SupportedExts = []string{ExtPNG, ExtJPG, ExtZIP}

// IsSupportedExt 判断 ext 是否在白名单内（大小写敏感，与站点路径保持一致）。
func IsSupportedExt(ext string) bool {
	for _, e := range SupportedExts {
		if e == ext {
			return true
		}
	}
	return false
}

// Asset 是分类下的一个可下载资源。
//
// 约束：
// - Ext 必须在 SupportedExts 内
// - Path 指向真实资源路径（assets/），不会是缩略图路径（asset_icons/）
type Asset struct {
	Title string // 显示名，可能带 "?v=2" 这类后缀，落盘前需截掉
	Path  string // 站内相对路径，例如 /media/assets/12/345.png
	Ext   string
}

// AssetPool 是页面上的一个分类。
// ClassifyCount 只用于进度展示；循环边界永远以 len(Assets) 为准。
type AssetPool struct {
	Classify      string
	ClassifyCount int
	Assets        []Asset
}

// Catalog 按文档顺序保存所有分类。断点下标直接索引这个顺序，因此顺序必须稳定。
type Catalog []AssetPool

// TotalAssets 返回所有分类实际解析到的资源数。
func (c Catalog) TotalAssets() int {
	n := 0
	for _, p := range c {
		n += len(p.Assets)
	}
	return n
}

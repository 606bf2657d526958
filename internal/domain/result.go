package domain

// AssetResult 是单个资源的下载结果：要么 Ok（已落盘），要么 Failed（带原因）。
// 是否在失败后继续由下载器的策略决定，结果本身不携带控制流。
type AssetResult struct {
	Index int // 资源在所属分类中的下标（从 0 开始，可直接作为下次的断点）
	Asset Asset

	File  string // Ok 时为最终文件路径
	Bytes int64

	Err error // Failed 时非 nil
}

func Ok(index int, a Asset, file string, n int64) AssetResult {
	return AssetResult{Index: index, Asset: a, File: file, Bytes: n}
}

func Failed(index int, a Asset, cause error) AssetResult {
	return AssetResult{Index: index, Asset: a, Err: cause}
}

func (r AssetResult) OK() bool { return r.Err == nil }

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// StructureError 表示页面结构不符合假设（分类后面找不到资源容器）。
// 这是整次 run 的致命错误：不返回部分 catalog。
type StructureError struct {
	Section  int    // 出问题的分类下标（文档顺序）
	Classify string // 已解析到的分类名，可能为空
	Reason   string
}

func (e *StructureError) Error() string {
	if e == nil {
		return "页面结构错误"
	}
	label := strings.TrimSpace(e.Classify)
	if label == "" {
		return fmt.Sprintf("页面结构错误：section[%d] %s", e.Section, e.Reason)
	}
	return fmt.Sprintf("页面结构错误：section[%d]（%s）%s", e.Section, label, e.Reason)
}

func IsStructureError(err error) bool {
	var e *StructureError
	return errors.As(err, &e)
}

// DownloadError 表示某个资源下载失败（非 2xx 或网络错误）。
// 默认策略下它会终止当前 run；错误信息必须带上资源路径，方便操作者定位断点。
type DownloadError struct {
	AssetPath string
	URL       string
	Err       error
}

func (e *DownloadError) Error() string {
	if e == nil {
		return "下载失败"
	}
	if e.Err == nil {
		return "下载失败：" + e.AssetPath
	}
	return fmt.Sprintf("下载失败：%s：%v", e.AssetPath, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

func IsDownloadError(err error) bool {
	var e *DownloadError
	return errors.As(err, &e)
}

package spriters

import (
	"strings"

	"github.com/John-Robertt/spritegrab/internal/domain"
)

// ResolveExt 根据资源路径确定最终扩展名，并在需要时改写路径里的扩展名。
//
// 规则（按顺序）：
//  1. 扩展名 = 最后一个路径段里最后一个 '.' 之后的内容（先去掉 '?' 之后的查询串）
//  2. 不在白名单内 => 改写为默认图片格式 png
//  3. isArchive=true => 无论之前结果如何，改写为 zip
//
// 查询串原样保留。rawPath 为空时调用方应直接跳过该资源，不要调用本函数。
func ResolveExt(rawPath string, isArchive bool) (path, ext string) {
	path = rawPath
	ext = extOf(rawPath)

	if !domain.IsSupportedExt(ext) {
		ext = domain.SupportedExts[0]
		path = replaceExt(path, ext)
	}
	if isArchive && ext != domain.ExtZIP {
		ext = domain.ExtZIP
		path = replaceExt(path, ext)
	}
	return path, ext
}

func extOf(p string) string {
	p, _ = splitQuery(p)
	base := p[strings.LastIndex(p, "/")+1:]
	dot := strings.LastIndex(base, ".")
	if dot < 0 {
		return ""
	}
	return base[dot+1:]
}

func replaceExt(p, ext string) string {
	p, query := splitQuery(p)
	slash := strings.LastIndex(p, "/")
	if dot := strings.LastIndex(p, "."); dot > slash {
		p = p[:dot]
	}
	return p + "." + ext + query
}

// splitQuery 在第一个 '?' 处切开，返回的 query 带 '?' 前缀。
func splitQuery(p string) (string, string) {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[:i], p[i:]
	}
	return p, ""
}

package provider

import (
	"context"
	"net/http"

	"github.com/John-Robertt/spritegrab/internal/domain"
)

// Source 把“站点结构”限制在 provider 包内部；run 层只依赖统一接口与稳定的 Catalog。
//
// 约束：
// - Fetch 不做缓存、不做限速（网络策略由 httpx 统一实现）
// - Parse 必须是纯函数：相同输入 => 相同输出
type Source interface {
	Name() string
	Fetch(ctx context.Context, pageURL string, c *http.Client) (html []byte, err error)
	Parse(html []byte) (domain.Catalog, error)
}

package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewPageClient_Defaults(t *testing.T) {
	c, err := NewPageClient(Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	if c.Timeout != DefaultPageTimeout {
		t.Fatalf("期望默认超时 %s，实际 %s", DefaultPageTimeout, c.Timeout)
	}
	if tr.Base.Proxy != nil {
		t.Fatalf("不期望启用代理，但 Proxy!=nil")
	}
}

func TestNewAssetClient_SingleAttemptNoTimeout(t *testing.T) {
	c, err := NewAssetClient(Options{Timeout: 5, RetryMax: 3, ProxyURL: "http://127.0.0.1:8080"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr := c.Transport.(*Transport)
	if tr.RetryMax != 0 {
		t.Fatalf("资源下载不应重试，实际 RetryMax=%d", tr.RetryMax)
	}
	if c.Timeout != 0 {
		t.Fatalf("资源下载不应设置总超时，实际 %s", c.Timeout)
	}
	if tr.Base.Proxy == nil {
		t.Fatalf("期望启用代理，但 Proxy=nil")
	}
}

func TestNewPageClient_InvalidProxyURL(t *testing.T) {
	_, err := NewPageClient(Options{ProxyURL: "http://[::1"})
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}

func TestTransport_SetsIdentityHeaders(t *testing.T) {
	var gotUA, gotRef string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotRef = r.Header.Get("Referer")
	}))
	defer srv.Close()

	c, err := NewAssetClient(Options{UserAgent: "spritegrab-test", Referer: "https://example.test/"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("请求失败：%v", err)
	}
	resp.Body.Close()

	if gotUA != "spritegrab-test" {
		t.Fatalf("期望 UA=spritegrab-test，实际 %q", gotUA)
	}
	if gotRef != "https://example.test/" {
		t.Fatalf("期望 Referer=https://example.test/，实际 %q", gotRef)
	}
}

func TestTransport_RandomUAWhenUnset(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	c, _ := NewPageClient(Options{})
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("请求失败：%v", err)
	}
	resp.Body.Close()

	if gotUA == "" || gotUA == "Go-http-client/1.1" {
		t.Fatalf("期望使用 UA 池，实际 %q", gotUA)
	}
}

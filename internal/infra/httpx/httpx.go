package httpx

import (
	"errors"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	DefaultPageTimeout  = 60 * time.Second
	DefaultPageRetryMax = 2
)

// Options 描述客户端身份与网络策略；空字段走内置默认值。
type Options struct {
	ProxyURL  string
	UserAgent string // 为空时每个请求从 UA 池随机取一个
	Referer   string // 为空时不设置
	Timeout   time.Duration
	RetryMax  int
}

// Transport 把“客户端身份（UA/Referer）+ 代理 + 有界重试”固化为统一策略。
//
// provider 与下载器只负责构造请求，不关心这些站点礼仪细节。
type Transport struct {
	Base *http.Transport

	ua *uaPool

	// UserAgent 非空时固定使用该值；否则从 UA 池随机选。
	UserAgent string
	Referer   string

	// RetryMax 表示最大重试次数（不含首次尝试），只针对网络错误，不针对 HTTP 状态码。
	// 资源下载固定为 0：每个资源只尝试一次。
	RetryMax int
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// 只对“可重放”的请求做重试：GET/HEAD 且无 body。
	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	max := t.RetryMax
	if max < 0 || !canRetry {
		max = 0
	}

	var lastErr error
	for attempt := 0; attempt <= max; attempt++ {
		r := req.Clone(req.Context())
		if r.Header.Get("User-Agent") == "" {
			if t.UserAgent != "" {
				r.Header.Set("User-Agent", t.UserAgent)
			} else {
				r.Header.Set("User-Agent", t.ua.random())
			}
		}
		if t.Referer != "" && r.Header.Get("Referer") == "" {
			r.Header.Set("Referer", t.Referer)
		}

		resp, err := t.Base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if req.Context().Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// NewPageClient 构造用于列表页抓取的 HTTP client：有总超时，网络错误有界重试。
func NewPageClient(opts Options) (*http.Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPageTimeout
	}
	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	}
	return newClient(opts)
}

// NewAssetClient 构造用于资源下载的 HTTP client。
//
// 规则：
// - 不重试（每个资源只尝试一次）
// - 不设总超时：zip 可能很大，body 读取时间不可预估；取消依赖 ctx
func NewAssetClient(opts Options) (*http.Client, error) {
	opts.Timeout = 0
	opts.RetryMax = 0
	return newClient(opts)
}

func newClient(opts Options) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	proxyURL := strings.TrimSpace(opts.ProxyURL)
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		base.Proxy = http.ProxyURL(u)
	}

	tr := &Transport{
		Base:      base,
		ua:        globalUA,
		UserAgent: strings.TrimSpace(opts.UserAgent),
		Referer:   strings.TrimSpace(opts.Referer),
		RetryMax:  opts.RetryMax,
	}
	return &http.Client{
		Transport: tr,
		Timeout:   opts.Timeout,
	}, nil
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = newUAPool()

func newUAPool() *uaPool {
	uas := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	}
	return &uaPool{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		uas: uas,
	}
}

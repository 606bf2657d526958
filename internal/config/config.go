package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/John-Robertt/spritegrab/internal/download"
	"github.com/John-Robertt/spritegrab/internal/infra/httpx"
)

const (
	// ErrCodeNotFound 表示 --config 显式指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	// FileName 是工作目录下自动发现的配置文件名（不含扩展名）。
	FileName = "spritegrab"
	// EnvPrefix 是环境变量前缀，例如 SPRITEGRAB_OUTPUT_ROOT、SPRITEGRAB_HTTP_PROXY。
	EnvPrefix = "SPRITEGRAB"

	DefaultOutputRoot = "out"
)

// CLIArgs 是 CLI 暴露的覆盖项，保留“是否显式指定”的信息：
// 例如 --on-error=halt 必须能覆盖配置文件里的 skip。
type CLIArgs struct {
	ConfigFile string

	OutputRoot    string
	OutputRootSet bool

	ProxyURL    string
	ProxyURLSet bool

	OnError    string
	OnErrorSet bool

	LogLevel    string
	LogLevelSet bool

	LogFormat    string
	LogFormatSet bool
}

// FileConfig 对应 spritegrab.yaml（同时接受同名环境变量）。
type FileConfig struct {
	OutputRoot string         `mapstructure:"output_root"`
	Site       SiteConfig     `mapstructure:"site"`
	HTTP       HTTPConfig     `mapstructure:"http"`
	Download   DownloadConfig `mapstructure:"download"`
	Logging    LoggingConfig  `mapstructure:"logging"`
}

type SiteConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
	Referer   string `mapstructure:"referer"`
}

type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Proxy     string        `mapstructure:"proxy"`
	PageRetry int           `mapstructure:"page_retry"`
}

type DownloadConfig struct {
	OnError string `mapstructure:"on_error"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// EffectiveConfig 是合并并规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	OutputRoot string // 绝对路径

	// BaseURL 为空表示使用列表页 URL 的源（scheme://host）。
	BaseURL   string
	UserAgent string
	Referer   string

	PageTimeout time.Duration
	PageRetry   int
	ProxyURL    string

	OnError download.Policy

	LogLevel  string
	LogFormat string
	LogOutput string

	// ConfigFile 是实际读取到的配置文件；未找到时为空。
	ConfigFile string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Load 读取配置并与 CLI 参数合并为最终配置。
//
// 覆盖优先级（固定）：CLI > 环境变量 > 配置文件 > 内置默认值。
//
// 配置文件发现：
// - 指定了 ConfigFile：必须存在
// - 否则尝试 <cwd>/spritegrab.yaml（可选）
func Load(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	v := newViper()
	cfgPath := filepath.Join(cwdAbs, FileName+".yaml")
	if strings.TrimSpace(cli.ConfigFile) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigFile)
		if _, err := os.Stat(cfgPath); err != nil {
			if os.IsNotExist(err) {
				return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: err}
			}
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(cwdAbs)
	}

	used := ""
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	} else {
		used = v.ConfigFileUsed()
	}

	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	eff, err := merge(cwdAbs, cli, fc)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	eff.ConfigFile = used
	return eff, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	// 所有 key 都要有默认值：viper 只会把“已知 key”的环境变量带进 Unmarshal。
	v.SetDefault("output_root", DefaultOutputRoot)
	v.SetDefault("site.base_url", "")
	v.SetDefault("site.user_agent", "")
	v.SetDefault("site.referer", "")
	v.SetDefault("http.timeout", httpx.DefaultPageTimeout)
	v.SetDefault("http.proxy", "")
	v.SetDefault("http.page_retry", httpx.DefaultPageRetryMax)
	v.SetDefault("download.on_error", download.PolicyHalt.String())
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig) (EffectiveConfig, error) {
	outRoot := fc.OutputRoot
	if cli.OutputRootSet {
		outRoot = cli.OutputRoot
	}
	if strings.TrimSpace(outRoot) == "" {
		return EffectiveConfig{}, errors.New("output_root 不能为空")
	}

	proxyURL := strings.TrimSpace(fc.HTTP.Proxy)
	if cli.ProxyURLSet {
		proxyURL = strings.TrimSpace(cli.ProxyURL)
	}
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return EffectiveConfig{}, fmt.Errorf("http.proxy 无效：%w", err)
		}
	}

	baseURL := strings.TrimRight(strings.TrimSpace(fc.Site.BaseURL), "/")
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil || u.Host == "" {
			return EffectiveConfig{}, fmt.Errorf("site.base_url 无效：%q", baseURL)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return EffectiveConfig{}, fmt.Errorf("site.base_url 必须是 http/https：%q", baseURL)
		}
	}

	onError := fc.Download.OnError
	if cli.OnErrorSet {
		onError = cli.OnError
	}
	policy, err := download.ParsePolicy(onError)
	if err != nil {
		return EffectiveConfig{}, err
	}

	if fc.HTTP.Timeout < 0 {
		return EffectiveConfig{}, fmt.Errorf("http.timeout 不能为负数：%s", fc.HTTP.Timeout)
	}
	retry := fc.HTTP.PageRetry
	if retry < 0 {
		retry = 0
	}
	// 列表页只有一个请求，重试上限截断到 5，避免对站点造成压力。
	if retry > 5 {
		retry = 5
	}

	level := fc.Logging.Level
	if cli.LogLevelSet {
		level = cli.LogLevel
	}
	format := fc.Logging.Format
	if cli.LogFormatSet {
		format = cli.LogFormat
	}
	switch format {
	case "console", "json":
	default:
		return EffectiveConfig{}, fmt.Errorf("logging.format 只能是 console 或 json，实际是 %q", format)
	}

	return EffectiveConfig{
		OutputRoot:  absCleanFrom(cwdAbs, outRoot),
		BaseURL:     baseURL,
		UserAgent:   strings.TrimSpace(fc.Site.UserAgent),
		Referer:     strings.TrimSpace(fc.Site.Referer),
		PageTimeout: fc.HTTP.Timeout,
		PageRetry:   retry,
		ProxyURL:    proxyURL,
		OnError:     policy,
		LogLevel:    level,
		LogFormat:   format,
		LogOutput:   fc.Logging.Output,
	}, nil
}

func absCleanFrom(baseAbs, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return baseAbs
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(baseAbs, p))
}

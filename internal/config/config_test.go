package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/John-Robertt/spritegrab/internal/download"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cwd := t.TempDir()

	eff, err := Load(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.OutputRoot != filepath.Join(cwd, DefaultOutputRoot) {
		t.Fatalf("期望 output_root=%q，实际=%q", filepath.Join(cwd, DefaultOutputRoot), eff.OutputRoot)
	}
	if eff.OnError != download.PolicyHalt {
		t.Fatalf("期望默认策略 halt，实际=%s", eff.OnError)
	}
	if eff.PageTimeout != 60*time.Second {
		t.Fatalf("期望默认超时 60s，实际=%s", eff.PageTimeout)
	}
	if eff.ConfigFile != "" {
		t.Fatalf("未放置配置文件时 ConfigFile 应为空，实际=%q", eff.ConfigFile)
	}
}

func TestLoad_FileValues(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "spritegrab.yaml"), []byte(`
output_root: sprites
site:
  base_url: https://mirror.example.test/
  user_agent: spritegrab/1.0
http:
  timeout: 15s
  page_retry: 9
download:
  on_error: skip
`))

	eff, err := Load(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.OutputRoot != filepath.Join(cwd, "sprites") {
		t.Fatalf("output_root 不符合预期：%q", eff.OutputRoot)
	}
	if eff.BaseURL != "https://mirror.example.test" {
		t.Fatalf("base_url 应去掉尾部斜杠：%q", eff.BaseURL)
	}
	if eff.UserAgent != "spritegrab/1.0" {
		t.Fatalf("user_agent 不符合预期：%q", eff.UserAgent)
	}
	if eff.PageTimeout != 15*time.Second {
		t.Fatalf("timeout 不符合预期：%s", eff.PageTimeout)
	}
	if eff.PageRetry != 5 {
		t.Fatalf("page_retry 应截断到 5，实际=%d", eff.PageRetry)
	}
	if eff.OnError != download.PolicySkip {
		t.Fatalf("期望 skip，实际=%s", eff.OnError)
	}
	if eff.ConfigFile == "" {
		t.Fatalf("期望记录实际读取的配置文件")
	}
}

func TestLoad_MergeOrder(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "spritegrab.yaml"), []byte("output_root: from-file\ndownload:\n  on_error: skip\n"))

	// 环境变量覆盖配置文件。
	t.Setenv("SPRITEGRAB_OUTPUT_ROOT", "from-env")
	eff, err := Load(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.OutputRoot != filepath.Join(cwd, "from-env") {
		t.Fatalf("期望环境变量生效，实际=%q", eff.OutputRoot)
	}

	// CLI 显式指定，覆盖一切。
	eff, err = Load(cwd, CLIArgs{
		OutputRoot:    "from-cli",
		OutputRootSet: true,
		OnError:       "halt",
		OnErrorSet:    true,
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.OutputRoot != filepath.Join(cwd, "from-cli") {
		t.Fatalf("期望 CLI 生效，实际=%q", eff.OutputRoot)
	}
	if eff.OnError != download.PolicyHalt {
		t.Fatalf("--on-error=halt 应覆盖配置文件中的 skip")
	}
}

func TestLoad_ExplicitConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := Load(cwd, CLIArgs{ConfigFile: "missing.yaml"})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"bad yaml":     "output_root: [",
		"bad policy":   "download:\n  on_error: retry\n",
		"bad base url": "site:\n  base_url: ftp://example.test\n",
		"bad proxy":    "http:\n  proxy: \"http://[::1\"\n",
		"bad format":   "logging:\n  format: xml\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			cwd := t.TempDir()
			writeFile(t, filepath.Join(cwd, "spritegrab.yaml"), []byte(body))

			_, err := Load(cwd, CLIArgs{})
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
			}
		})
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}

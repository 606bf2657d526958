package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/spritegrab/internal/app/run"
	"github.com/John-Robertt/spritegrab/internal/config"
	"github.com/John-Robertt/spritegrab/internal/domain"
	"github.com/John-Robertt/spritegrab/internal/infra/httpx"
	"github.com/John-Robertt/spritegrab/internal/logger"
	"github.com/John-Robertt/spritegrab/internal/provider/spriters"
)

// errRunFailed 表示 run 已失败且细节已由进度输出打印过；只用于让进程以非 0 退出。
var errRunFailed = errors.New("run 失败")

type globalFlags struct {
	configFile string
	outRoot    string
	proxy      string
	onError    string
	logLevel   string
	logFormat  string
}

// cliArgs 只把用户显式给出的 flag 视为覆盖项。
func (g *globalFlags) cliArgs(cmd *cobra.Command) config.CLIArgs {
	return config.CLIArgs{
		ConfigFile:    g.configFile,
		OutputRoot:    g.outRoot,
		OutputRootSet: flagChanged(cmd, "out"),
		ProxyURL:      g.proxy,
		ProxyURLSet:   flagChanged(cmd, "proxy"),
		OnError:       g.onError,
		OnErrorSet:    flagChanged(cmd, "on-error"),
		LogLevel:      g.logLevel,
		LogLevelSet:   flagChanged(cmd, "log-level"),
		LogFormat:     g.logFormat,
		LogFormatSet:  flagChanged(cmd, "log-format"),
	}
}

func flagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flag(name)
	return f != nil && f.Changed
}

func newRootCmd() *cobra.Command {
	var gf globalFlags

	cmd := &cobra.Command{
		Use:   "spritegrab",
		Short: "按分类下载 spriters-resource 列表页上的全部资源",
		Long: `spritegrab 抓取一个分类列表页，解析出所有分类与资源，并按顺序下载到
<out>/<游戏名>/<分类>/<标题>.<扩展名>。

不带子命令时进入交互模式：每行输入 "<url> [分类下标] [资源下标]"，输入 exit 退出。
中断后可以用失败提示里的两个下标从断点继续。`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env 可选，不存在时忽略
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, &gf)
			if err != nil {
				return err
			}
			defer a.close()
			a.printConfig()
			return a.promptLoop(cmdContext(cmd), cmd.InOrStdin())
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&gf.configFile, "config", "", "配置文件路径（默认读取当前目录的 spritegrab.yaml）")
	f.StringVar(&gf.outRoot, "out", config.DefaultOutputRoot, "输出根目录")
	f.StringVar(&gf.proxy, "proxy", "", "HTTP 代理，例如 http://127.0.0.1:7890")
	f.StringVar(&gf.onError, "on-error", "halt", "资源下载失败时的策略：halt 或 skip")
	f.StringVar(&gf.logLevel, "log-level", "info", "日志级别：debug, info, warn, error")
	f.StringVar(&gf.logFormat, "log-format", "console", "日志格式：console 或 json")

	cmd.AddCommand(newGetCmd(&gf), newListCmd(&gf))
	return cmd
}

func newGetCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <url> [classify_index] [asset_index]",
		Short: "下载一个分类列表页（可从断点继续）",
		Example: `  spritegrab get https://www.spriters-resource.com/pc_computer/somegame/
  spritegrab get https://www.spriters-resource.com/pc_computer/somegame/ 3 17`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cursor, err := parseCursor(args[1:])
			if err != nil {
				return err
			}
			a, err := newApp(cmd, gf)
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.runner.Run(cmdContext(cmd), args[0], cursor); err != nil {
				return errRunFailed
			}
			return nil
		},
	}
}

func newListCmd(gf *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list <url>",
		Short: "只解析列表页并打印分类/资源下标，不下载",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, gf)
			if err != nil {
				return err
			}
			defer a.close()

			cat, err := a.runner.Catalog(cmdContext(cmd), args[0])
			if err != nil {
				return errors.New(humanizeError(err))
			}
			if asJSON {
				return writeCatalogJSON(cmd.OutOrStdout(), cat)
			}
			return writeCatalogTable(cmd.OutOrStdout(), cat)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出")
	return cmd
}

// app 持有一次进程内共享的配置、日志与 runner。
type app struct {
	eff    config.EffectiveConfig
	log    *zap.Logger
	runner *run.Runner
	ui     *progressUI
	stderr io.Writer
}

func newApp(cmd *cobra.Command, gf *globalFlags) (*app, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("读取当前目录失败：%w", err)
	}
	eff, err := config.Load(cwd, gf.cliArgs(cmd))
	if err != nil {
		return nil, fmt.Errorf("配置错误：%w", err)
	}

	log, err := logger.New(logger.Config{
		Level:      eff.LogLevel,
		Format:     eff.LogFormat,
		OutputPath: eff.LogOutput,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败：%w", err)
	}

	ui := newProgressUI(cmd.ErrOrStderr())
	opts := httpx.Options{
		ProxyURL:  eff.ProxyURL,
		UserAgent: eff.UserAgent,
		Referer:   eff.Referer,
		Timeout:   eff.PageTimeout,
		RetryMax:  eff.PageRetry,
	}
	r := &run.Runner{
		Source:   spriters.Provider{},
		HTTP:     opts,
		BaseURL:  eff.BaseURL,
		OutRoot:  eff.OutputRoot,
		Policy:   eff.OnError,
		Observer: ui,
		Log:      log,
	}
	return &app{eff: eff, log: log, runner: r, ui: ui, stderr: cmd.ErrOrStderr()}, nil
}

func (a *app) close() {
	_ = a.log.Sync()
}

func (a *app) printConfig() {
	w := a.stderr
	fmt.Fprintln(w, "配置（生效）:")
	if a.eff.ConfigFile != "" {
		fmt.Fprintf(w, "  config: %s\n", a.eff.ConfigFile)
	}
	fmt.Fprintf(w, "  out: %s\n", a.eff.OutputRoot)
	if a.eff.BaseURL != "" {
		fmt.Fprintf(w, "  base_url: %s\n", a.eff.BaseURL)
	}
	fmt.Fprintf(w, "  proxy: %s\n", formatProxy(a.eff.ProxyURL))
	fmt.Fprintf(w, "  on_error: %s\n", a.eff.OnError)
	fmt.Fprintln(w)
}

// parseCursor 解析可选的两个下标；缺省为 0。
func parseCursor(args []string) (domain.ResumeCursor, error) {
	var c domain.ResumeCursor
	if len(args) > 2 {
		return c, fmt.Errorf("最多两个下标，实际 %d 个", len(args))
	}
	dst := []*int{&c.ClassifyIndex, &c.AssetIndex}
	names := []string{"分类下标", "资源下标"}
	for i, s := range args {
		n, err := strconv.Atoi(s)
		if err != nil {
			return domain.ResumeCursor{}, fmt.Errorf("%s必须是整数：%q", names[i], s)
		}
		*dst[i] = n
	}
	if err := c.Validate(); err != nil {
		return domain.ResumeCursor{}, err
	}
	return c, nil
}

type catalogEntry struct {
	Index    int    `json:"index"`
	Classify string `json:"classify"`
	Declared int    `json:"declared"`
	Assets   int    `json:"assets"`
}

func catalogEntries(cat domain.Catalog) []catalogEntry {
	out := make([]catalogEntry, 0, len(cat))
	for i, p := range cat {
		out = append(out, catalogEntry{Index: i, Classify: p.Classify, Declared: p.ClassifyCount, Assets: len(p.Assets)})
	}
	return out
}

func writeCatalogJSON(w io.Writer, cat domain.Catalog) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(catalogEntries(cat))
}

func writeCatalogTable(w io.Writer, cat domain.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "下标\t分类\t声明\t解析")
	for _, e := range catalogEntries(cat) {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", e.Index, e.Classify, e.Declared, e.Assets)
	}
	fmt.Fprintf(tw, "合计\t%d 个分类\t\t%d\n", len(cat), cat.TotalAssets())
	return tw.Flush()
}

// cmdContext 兼容直接调用 Execute（未注入 context）的情况。
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

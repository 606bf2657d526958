package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/John-Robertt/spritegrab/internal/app/run"
	"github.com/John-Robertt/spritegrab/internal/domain"
)

const (
	promptText  = "请输入网址: "
	exitKeyword = "exit"
)

var errEmptyLine = errors.New("空行")

// promptLine 是一行交互输入的解析结果。
type promptLine struct {
	Exit   bool
	URL    string
	Cursor domain.ResumeCursor
}

// parseLine 解析 "exit" 或 "<url> [分类下标] [资源下标]"（空白分隔）。
func parseLine(line string) (promptLine, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return promptLine{}, errEmptyLine
	}
	if len(fields) == 1 && strings.EqualFold(fields[0], exitKeyword) {
		return promptLine{Exit: true}, nil
	}
	if len(fields) > 3 {
		return promptLine{}, fmt.Errorf("参数过多：期望 <url> [分类下标] [资源下标]，实际 %d 项", len(fields))
	}
	if _, err := run.BaseClassify(fields[0]); err != nil {
		return promptLine{}, err
	}
	cursor, err := parseCursor(fields[1:])
	if err != nil {
		return promptLine{}, err
	}
	return promptLine{URL: fields[0], Cursor: cursor}, nil
}

// promptLoop 逐行读取输入并执行 run，直到 exit、EOF 或 context 取消。
// 单次 run 失败不会结束循环。
func (a *app) promptLoop(ctx context.Context, in io.Reader) error {
	done := make(chan struct{})
	defer close(done)
	lines, readErr := readLines(in, done)

	for {
		fmt.Fprint(a.stderr, promptText)

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(a.stderr)
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(a.stderr)
				return <-readErr
			}
			line = l
		}

		pl, err := parseLine(line)
		switch {
		case errors.Is(err, errEmptyLine):
			continue
		case err != nil:
			fmt.Fprintf(a.stderr, "输入错误：%v\n", err)
			continue
		case pl.Exit:
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// 失败细节由进度输出负责打印
		_, _ = a.runner.Run(ctx, pl.URL, pl.Cursor)
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintln(a.stderr)
	}
}

// readLines 在单独的 goroutine 里读 stdin，让调用方可以同时等待 context。
// 读到 EOF 后先写 readErr 再关闭 lines；done 关闭后停止投递。
// 阻塞在 Scan 上的 goroutine 只能随进程退出。
func readLines(in io.Reader, done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
		readErr <- sc.Err()
		close(lines)
	}()
	return lines, readErr
}

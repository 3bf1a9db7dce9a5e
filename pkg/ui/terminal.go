// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
	"golang.org/x/term"
	"k8s.io/klog/v2"

	"github.com/gemini-shop/shop-agent/pkg/agent"
)

const prompt = ">>> "

var (
	statusStyle = lipgloss.NewStyle().Faint(true).Italic(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
)

// TerminalUI is a line-oriented chat on a terminal. Each line read is one turn;
// the answer is rendered as markdown once the turn is resolved.
type TerminalUI struct {
	agent            agent.Agent
	markdownRenderer *glamour.TermRenderer

	in  io.Reader
	out io.Writer

	// Input handling fields (initialized once)
	rlInstance *readline.Instance // For readline input
	ttyFile    *os.File           // For TTY input
	lineReader *bufio.Reader      // For TTY or piped input

	// useTTYForInput is set when stdin already carried the query, so further
	// input has to come from /dev/tty.
	useTTYForInput bool
}

func getCustomTerminalWidth() int {
	if widthStr := os.Getenv("SHOP_AGENT_TERM_WIDTH"); widthStr != "" {
		if width, err := strconv.Atoi(widthStr); err == nil && width > 0 {
			return width
		}
		klog.Warningf("Invalid SHOP_AGENT_TERM_WIDTH value %q, using default", widthStr)
	}
	if isTerminal(os.Stdout) {
		if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
			return width
		}
	}
	// 0 means glamour's default
	return 0
}

func isTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// NewTerminalUI creates a UI reading from in and writing to out.
func NewTerminalUI(a agent.Agent, in io.Reader, out io.Writer, useTTYForInput bool) (*TerminalUI, error) {
	options := []glamour.TermRendererOption{
		glamour.WithPreservedNewLines(),
		glamour.WithEmoji(),
	}
	if f, ok := out.(*os.File); ok && isTerminal(f) {
		options = append(options, glamour.WithAutoStyle())
	} else {
		options = append(options, glamour.WithStandardStyle("notty"))
	}
	if width := getCustomTerminalWidth(); width > 0 {
		options = append(options, glamour.WithWordWrap(width))
	}

	mdRenderer, err := glamour.NewTermRenderer(options...)
	if err != nil {
		return nil, fmt.Errorf("error initializing the markdown renderer: %w", err)
	}

	return &TerminalUI{
		agent:            a,
		markdownRenderer: mdRenderer,
		in:               in,
		out:              out,
		useTTYForInput:   useTTYForInput,
	}, nil
}

// Run reads queries until EOF, Ctrl+C or "exit".
func (u *TerminalUI) Run(ctx context.Context) error {
	fmt.Fprintln(u.out, bannerStyle.Render("Gemini Shop 智能客服")+statusStyle.Render("  (输入 exit 退出)"))
	for {
		query, err := u.readQuery()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		query = strings.TrimSpace(query)
		switch query {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		if err := u.RunQuery(ctx, query); err != nil {
			// Transport failures are shown and the chat goes on from the same history.
			fmt.Fprintln(u.out, errorStyle.Render(fmt.Sprintf("抱歉，处理您的请求时出现错误：%v", err)))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// RunQuery resolves one turn, printing status updates as they arrive and then the answer.
func (u *TerminalUI) RunQuery(ctx context.Context, query string) error {
	answer, err := u.agent.HandleTurn(ctx, query, func(status string) {
		fmt.Fprintln(u.out, statusStyle.Render("  "+status))
	})
	if err != nil {
		return err
	}
	fmt.Fprint(u.out, u.renderMarkdown(answer))
	return nil
}

func (u *TerminalUI) renderMarkdown(text string) string {
	out, err := u.markdownRenderer.Render(text)
	if err != nil {
		klog.Errorf("Error rendering markdown: %v", err)
		return text + "\n"
	}
	return out
}

func (u *TerminalUI) readQuery() (string, error) {
	if u.useTTYForInput {
		r, err := u.ttyReader()
		if err != nil {
			return "", err
		}
		fmt.Fprint(u.out, "\n"+prompt)
		return r.ReadString('\n')
	}

	if f, ok := u.in.(*os.File); ok && isTerminal(f) {
		rl, err := u.readlineInstance()
		if err != nil {
			return "", err
		}
		query, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			return "", io.EOF
		}
		return query, err
	}

	if u.lineReader == nil {
		u.lineReader = bufio.NewReader(u.in)
	}
	query, err := u.lineReader.ReadString('\n')
	if errors.Is(err, io.EOF) && query != "" {
		// last line without a newline
		return query, nil
	}
	return query, err
}

func (u *TerminalUI) ttyReader() (*bufio.Reader, error) {
	if u.lineReader != nil {
		return u.lineReader, nil
	}
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening tty for input: %w", err)
	}
	u.ttyFile = tty
	u.lineReader = bufio.NewReader(tty)
	return u.lineReader, nil
}

func (u *TerminalUI) readlineInstance() (*readline.Instance, error) {
	if u.rlInstance != nil {
		return u.rlInstance, nil
	}
	historyPath := filepath.Join(os.TempDir(), "shop-agent-history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      prompt,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		HistoryFile: historyPath,
	})
	if err != nil {
		return nil, fmt.Errorf("creating readline instance: %w", err)
	}
	u.rlInstance = rl
	return u.rlInstance, nil
}

func (u *TerminalUI) Close() error {
	var errs []error
	if u.rlInstance != nil {
		if err := u.rlInstance.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing readline instance: %w", err))
		}
	}
	if u.ttyFile != nil {
		if err := u.ttyFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing tty file: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Package lspclient is an installable completion provider backed by a
// language server spoken to over JSON-RPC on the server's stdio.
package lspclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	lsp "github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"
	"pkt.systems/pslog"

	"quill/editor"
	"quill/extension"
)

const (
	DefaultCommand = "gopls"
	DefaultTimeout = 600 * time.Millisecond

	maxItems = 20
)

// Options configures a Provider. Zero values pick gopls for .go files.
type Options struct {
	Command    string
	Args       []string
	LanguageID string
	// Extensions lists the file suffixes the server is asked about.
	Extensions []string
	Timeout    time.Duration
	RootDir    string
	Logger     pslog.Logger
	// Dial opens the transport. Defaults to starting Command.
	Dial func(ctx context.Context) (io.ReadWriteCloser, error)
}

// Provider asks a language server for completions. The server is started on
// first use; if it cannot be started or initialised the provider disables
// itself for the rest of the session.
type Provider struct {
	opts     Options
	log      pslog.Logger
	conn     *jsonrpc2.Conn
	opened   map[lsp.DocumentURI]int
	disabled error
}

func New(opts Options) *Provider {
	if opts.Command == "" {
		opts.Command = DefaultCommand
	}
	if opts.LanguageID == "" {
		opts.LanguageID = "go"
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".go"}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RootDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			opts.RootDir = cwd
		}
	}
	p := &Provider{opts: opts, log: opts.Logger, opened: map[lsp.DocumentURI]int{}}
	if p.opts.Dial == nil {
		p.opts.Dial = p.spawn
	}
	return p
}

func (p *Provider) Name() string    { return "Language Server Completion" }
func (p *Provider) Version() string { return "1.0.0" }
func (p *Provider) Description() string {
	return fmt.Sprintf("Completions from %s for %s files", p.opts.Command, strings.Join(p.opts.Extensions, ", "))
}

// Err reports why the provider disabled itself, or nil.
func (p *Provider) Err() error { return p.disabled }

func (p *Provider) handles(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range p.opts.Extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Completions implements extension.Completer.
func (p *Provider) Completions(snap extension.Snapshot, cursor int) []string {
	if p.disabled != nil || !p.handles(snap.Path) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.Timeout)
	defer cancel()

	if err := p.ensureStarted(ctx); err != nil {
		p.disabled = err
		if p.log != nil {
			p.log.Warn("lsp disabled", "command", p.opts.Command, "err", err)
		}
		p.shutdownConn()
		return nil
	}
	items, err := p.complete(ctx, snap, cursor)
	if err != nil {
		if p.log != nil {
			p.log.Debug("lsp completion failed", "path", snap.Path, "err", err)
		}
		return nil
	}
	return qualify(items, snap.Text, cursor)
}

// qualify puts back the "pkg." part of the identifier run before cursor.
// Servers answer with bare member names, but the run that a completion
// replaces starts at the qualifier.
func qualify(items []string, text string, cursor int) []string {
	rs := []rune(text)
	cursor = max(0, min(cursor, len(rs)))
	run := string(rs[editor.PrefixStart(rs, cursor):cursor])
	qual := run[:strings.LastIndexByte(run, '.')+1]
	if qual == "" {
		return items
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if !strings.HasPrefix(it, qual) {
			it = qual + it
		}
		out = append(out, it)
	}
	return out
}

func (p *Provider) spawn(context.Context) (io.ReadWriteCloser, error) {
	cmd := exec.Command(p.opts.Command, p.opts.Args...)
	cmd.Dir = p.opts.RootDir
	cmd.Stderr = io.Discard
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &processTransport{cmd: cmd, in: stdin, out: stdout, grace: p.opts.Timeout}, nil
}

type processTransport struct {
	cmd   *exec.Cmd
	in    io.WriteCloser
	out   io.ReadCloser
	grace time.Duration
}

func (t *processTransport) Read(b []byte) (int, error)  { return t.out.Read(b) }
func (t *processTransport) Write(b []byte) (int, error) { return t.in.Write(b) }

// Close closes stdin and reaps the server. A server still running after the
// grace period is killed. A non-zero exit after the pipe closes is expected
// and not reported.
func (t *processTransport) Close() error {
	closeErr := t.in.Close()
	done := make(chan error, 1)
	go func() { done <- t.cmd.Wait() }()
	var waitErr error
	select {
	case waitErr = <-done:
	case <-time.After(t.grace):
		_ = t.cmd.Process.Kill()
		waitErr = <-done
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		waitErr = nil
	}
	return errors.Join(closeErr, waitErr)
}

// rpcLogger routes jsonrpc2's internal messages to pslog instead of stderr,
// which belongs to the terminal UI.
type rpcLogger struct{ log pslog.Logger }

func (l rpcLogger) Printf(format string, v ...any) {
	if l.log != nil {
		l.log.Debug("jsonrpc2", "msg", strings.TrimSpace(fmt.Sprintf(format, v...)))
	}
}

func (p *Provider) ensureStarted(ctx context.Context) error {
	if p.conn != nil {
		return nil
	}
	rwc, err := p.opts.Dial(ctx)
	if err != nil {
		return fmt.Errorf("start %s: %w", p.opts.Command, err)
	}
	p.conn = jsonrpc2.NewConn(context.Background(),
		jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(p.handleServer).SuppressErrClosed(),
		jsonrpc2.SetLogger(rpcLogger{p.log}))

	params := lsp.InitializeParams{
		ProcessID: os.Getpid(),
		RootURI:   pathToURI(p.opts.RootDir),
	}
	var result json.RawMessage
	if err := p.conn.Call(ctx, "initialize", params, &result); err != nil {
		return fmt.Errorf("initialize %s: %w", p.opts.Command, err)
	}
	if err := p.conn.Notify(ctx, "initialized", struct{}{}); err != nil {
		return fmt.Errorf("initialized %s: %w", p.opts.Command, err)
	}
	if p.log != nil {
		p.log.Info("lsp started", "command", p.opts.Command, "root", p.opts.RootDir)
	}
	return nil
}

// handleServer answers server-initiated traffic. Notifications such as
// diagnostics are dropped; requests get an empty result.
func (p *Provider) handleServer(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	if p.log != nil {
		p.log.Trace("lsp server message", "method", req.Method)
	}
	return nil, nil
}

func (p *Provider) complete(ctx context.Context, snap extension.Snapshot, cursor int) ([]string, error) {
	uri := documentURI(snap.Path)
	if err := p.syncDocument(ctx, uri, snap.Text); err != nil {
		return nil, err
	}
	params := lsp.CompletionParams{
		TextDocumentPositionParams: lsp.TextDocumentPositionParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: uri},
			Position:     positionAt(snap.Text, cursor),
		},
		Context: lsp.CompletionContext{TriggerKind: lsp.CTKInvoked},
	}
	var raw json.RawMessage
	if err := p.conn.Call(ctx, "textDocument/completion", params, &raw); err != nil {
		return nil, err
	}
	return parseCompletionItems(raw), nil
}

func (p *Provider) syncDocument(ctx context.Context, uri lsp.DocumentURI, text string) error {
	ver := p.opened[uri]
	if ver == 0 {
		err := p.conn.Notify(ctx, "textDocument/didOpen", lsp.DidOpenTextDocumentParams{
			TextDocument: lsp.TextDocumentItem{URI: uri, LanguageID: p.opts.LanguageID, Version: 1, Text: text},
		})
		if err != nil {
			return err
		}
		p.opened[uri] = 1
		return nil
	}
	ver++
	err := p.conn.Notify(ctx, "textDocument/didChange", lsp.DidChangeTextDocumentParams{
		TextDocument: lsp.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: lsp.TextDocumentIdentifier{URI: uri},
			Version:                ver,
		},
		ContentChanges: []lsp.TextDocumentContentChangeEvent{{Text: text}},
	})
	if err != nil {
		return err
	}
	p.opened[uri] = ver
	return nil
}

// Close shuts the server down politely. Safe to call when never started.
func (p *Provider) Close() error {
	if p.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.Timeout)
	defer cancel()
	_ = p.conn.Call(ctx, "shutdown", nil, nil)
	_ = p.conn.Notify(ctx, "exit", nil)
	return p.shutdownConn()
}

func (p *Provider) shutdownConn() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	p.opened = map[lsp.DocumentURI]int{}
	return err
}

// completionItem keeps only the fields used here. Servers disagree on the
// shape of documentation, so go-lsp's CompletionItem is not decoded directly.
type completionItem struct {
	Label            string `json:"label"`
	InsertText       string `json:"insertText"`
	InsertTextFormat int    `json:"insertTextFormat"`
	TextEdit         *struct {
		NewText string `json:"newText"`
	} `json:"textEdit"`
}

func parseCompletionItems(raw json.RawMessage) []string {
	var direct []completionItem
	if err := json.Unmarshal(raw, &direct); err == nil {
		return insertTexts(direct)
	}
	var list struct {
		Items []completionItem `json:"items"`
	}
	if err := json.Unmarshal(raw, &list); err == nil {
		return insertTexts(list.Items)
	}
	return nil
}

func insertTexts(items []completionItem) []string {
	out := make([]string, 0, min(len(items), maxItems))
	seen := map[string]bool{}
	for _, it := range items {
		text := it.InsertText
		if it.TextEdit != nil && it.TextEdit.NewText != "" {
			text = it.TextEdit.NewText
		}
		if text == "" {
			text = it.Label
		}
		if it.InsertTextFormat == int(lsp.ITFSnippet) {
			text = stripSnippet(text)
		}
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		out = append(out, text)
		if len(out) >= maxItems {
			break
		}
	}
	return out
}

// stripSnippet removes $1 tab stops and keeps the default text of ${1:x}
// placeholders.
func stripSnippet(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '$' && i+1 < len(s) {
			if s[i+1] == '{' {
				if j := strings.IndexByte(s[i+2:], '}'); j >= 0 {
					inner := s[i+2 : i+2+j]
					if k := strings.IndexByte(inner, ':'); k >= 0 {
						b.WriteString(inner[k+1:])
					}
					i += 2 + j
					continue
				}
			}
			if s[i+1] >= '0' && s[i+1] <= '9' {
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// positionAt converts a rune offset to an LSP position, whose character
// counts UTF-16 code units.
func positionAt(text string, cursor int) lsp.Position {
	var pos lsp.Position
	n := 0
	for _, r := range text {
		if n >= cursor {
			break
		}
		n++
		switch {
		case r == '\n':
			pos.Line++
			pos.Character = 0
		case r <= 0xFFFF:
			pos.Character++
		default:
			pos.Character += 2
		}
	}
	return pos
}

func documentURI(path string) lsp.DocumentURI {
	if path == "" {
		path = "untitled.go"
	}
	return pathToURI(path)
}

func pathToURI(path string) lsp.DocumentURI {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return lsp.DocumentURI(u.String())
}

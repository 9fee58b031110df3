// Command pdfchat runs a question-answering session over one PDF in the
// terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"pdf-chat/internal/app"
	"pdf-chat/internal/chat"
	"pdf-chat/internal/events"
	"pdf-chat/internal/i18n"
	"pdf-chat/internal/pdftext"
)

func main() {
	file := flag.String("file", "", "PDF file to load before the first question")
	locale := flag.String("locale", "", "language pack (es, en); defaults to LOCALE")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx)
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()
	if *locale != "" {
		deps.Lang = i18n.Lookup(*locale)
	}

	if err := run(ctx, deps, *file, os.Stdin, os.Stdout); err != nil {
		deps.Log.Error("pdfchat failed", "err", err)
		os.Exit(1)
	}
}

// console renders session events as they arrive.
type console struct {
	out  io.Writer
	lang i18n.Pack
	ch   <-chan events.Event
}

// drain prints every event already delivered.
func (c *console) drain() {
	for {
		select {
		case ev, ok := <-c.ch:
			if !ok {
				return
			}
			c.print(ev)
		default:
			return
		}
	}
}

func (c *console) print(ev events.Event) {
	switch ev.Type {
	case events.TypeDocumentLoaded:
		fmt.Fprintf(c.out, "[%s: %d pages, %d chars]\n", ev.Document.Name, ev.Document.Pages, ev.Document.Length)
	case events.TypeTurnAppended:
		label := "you"
		if ev.Turn.Role == string(chat.RoleModel) {
			label = "ai"
		}
		fmt.Fprintf(c.out, "%s> %s\n", label, ev.Turn.Content)
	}
}

func run(ctx context.Context, deps app.Deps, file string, in io.Reader, out io.Writer) error {
	s := deps.Sessions.Create()
	defer deps.Sessions.Close(s.ID())

	ch, cancel := deps.Broker.Subscribe(s.ID())
	defer cancel()
	con := &console{out: out, lang: deps.Lang, ch: ch}

	fmt.Fprintf(out, "%s\n", deps.Lang.Title)
	if file != "" {
		load(ctx, s, con, file)
	} else {
		fmt.Fprintln(out, deps.Lang.NoDocument)
	}
	fmt.Fprintf(out, "(%s; /load <file.pdf>, /quit)\n", deps.Lang.Placeholder)

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			return sc.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case strings.HasPrefix(line, "/load "):
			load(ctx, s, con, strings.TrimSpace(strings.TrimPrefix(line, "/load ")))
			continue
		}

		fmt.Fprintln(out, deps.Lang.Processing)
		_, err := s.Ask(ctx, line)
		switch {
		case err == nil:
		case chat.IsKind(err, chat.KindNoDocumentLoaded):
			fmt.Fprintln(out, deps.Lang.NoDocument)
		case errors.Is(err, chat.ErrBusy):
			fmt.Fprintln(out, deps.Lang.Busy)
		default:
			return err
		}
		con.drain()
	}
}

func load(ctx context.Context, s *chat.Session, con *console, path string) {
	if !pdftext.IsPDFName(path) {
		fmt.Fprintf(con.out, "%s (%s)\n", con.lang.UploadLabel, path)
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(con.out, "%s: %v\n", con.lang.ParseFailed, err)
		return
	}
	fmt.Fprintln(con.out, con.lang.Processing)
	if _, err := s.LoadDocument(ctx, filepath.Base(path), data); err != nil {
		fmt.Fprintf(con.out, "%s (%v)\n", con.lang.ParseFailed, err)
		return
	}
	con.drain()
}

/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/

// The watch command follows the signed-in user's bookmarks from a terminal.
//
// Commands read from stdin:
//
//	add <url> <title...>   add a bookmark
//	rm <index|id>          delete by list position or id
//	ls                     print the list again
//	quit                   exit
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seckatie/marksync/internal/client"
	"github.com/seckatie/marksync/internal/config"
	"github.com/seckatie/marksync/internal/core/auth"
	"github.com/seckatie/marksync/internal/core/live"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow and edit your bookmarks from the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Client.Token == "" {
			return errors.New("a token is required (--token or MARKSYNC_TOKEN)")
		}
		ownerID, err := auth.SubjectFromToken(cfg.Client.Token)
		if err != nil {
			return err
		}
		logger, err := config.NewLogger(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer logger.Sync()

		c, err := client.New(cfg.Client.Server, cfg.Client.Token, client.WithLogger(logger))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runWatch(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), c, c, ownerID,
			live.WithLogger(logger),
			live.WithStoreTimeout(cfg.Client.StoreTimeout),
		)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("server", "http://localhost:8080", "marksync server URL")
	watchCmd.Flags().String("token", "", "Access token")
}

// watcher renders the engine's list and executes typed commands against it.
type watcher struct {
	engine *live.Engine

	mu   sync.Mutex
	out  io.Writer
	last []live.Bookmark
}

// runWatch runs an engine for ownerID until in is exhausted, "quit" is read
// or ctx is cancelled.
func runWatch(ctx context.Context, in io.Reader, out io.Writer, store live.Store, feed live.Feed, ownerID string, opts ...live.Option) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := &watcher{out: out}
	opts = append(opts, live.WithOnChange(w.render), live.WithErrorHandler(w.printError))
	w.engine = live.New(store, feed, ownerID, opts...)

	errCh := make(chan error, 1)
	go func() { errCh <- w.engine.Run(ctx) }()

	select {
	case <-w.engine.Ready():
	case err := <-errCh:
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok || !w.exec(ctx, line) {
				break loop
			}
		}
	}

	cancel()
	return <-errCh
}

// exec runs one command line. It returns false when the session should end.
func (w *watcher) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	switch fields[0] {
	case "add":
		if len(fields) < 3 {
			w.printf("usage: add <url> <title...>\n")
			return true
		}
		if _, err := w.engine.AddLocal(ctx, strings.Join(fields[2:], " "), fields[1]); err != nil {
			w.printError(err)
		}
	case "rm", "del", "delete":
		if len(fields) != 2 {
			w.printf("usage: rm <index|id>\n")
			return true
		}
		id, err := w.resolve(fields[1])
		if err != nil {
			w.printError(err)
			return true
		}
		if _, err := w.engine.DeleteLocal(ctx, id); err != nil {
			w.printError(err)
		}
	case "ls", "list":
		items, err := w.engine.Items(ctx)
		if err != nil {
			w.printError(err)
			return true
		}
		w.render(items)
	case "quit", "exit", "q":
		return false
	case "help", "?":
		w.printf("commands: add <url> <title...> | rm <index|id> | ls | quit\n")
	default:
		w.printf("unknown command %q (try help)\n", fields[0])
	}
	return true
}

// resolve maps a 1-based position in the last rendered list to an id.
// Anything that is not a valid position is taken as an id.
func (w *watcher) resolve(arg string) (string, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return arg, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if n < 1 || n > len(w.last) {
		return "", fmt.Errorf("no bookmark at position %d", n)
	}
	return w.last[n-1].ID, nil
}

func (w *watcher) render(items []live.Bookmark) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last = items

	fmt.Fprintf(w.out, "--- %d bookmark(s)\n", len(items))
	for i, b := range items {
		marker := " "
		if live.IsProvisional(b.ID) {
			marker = "*"
		}
		fmt.Fprintf(w.out, "%s%3d. %s  %s\n", marker, i+1, b.Title, b.URL)
	}
}

func (w *watcher) printError(err error) {
	w.printf("error: %v\n", err)
}

func (w *watcher) printf(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, format, args...)
}

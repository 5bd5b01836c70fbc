package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/idilsaglam/posts/internal/api"
	"github.com/idilsaglam/posts/internal/auth"
	"github.com/idilsaglam/posts/internal/config"
	"github.com/idilsaglam/posts/internal/listsync"
	"github.com/idilsaglam/posts/internal/tui"
	"github.com/idilsaglam/posts/internal/ui"
)

// Options tune output behavior from root flags.
type Options struct {
	Group      bool   // print grouped by pending/done
	ConfigPath string // explicit config file; empty means ~/.posts/config.toml

	Logger *log.Logger
	Stdin  io.Reader

	// Credentials overrides the ~/.posts credential store.
	Credentials *auth.Store
	// Tokens overrides Credentials as the API token source.
	Tokens auth.TokenSource
}

type runner struct {
	ctx   context.Context
	opt   Options
	cfg   config.Config
	creds *auth.Store
	log   *log.Logger
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func Run(ctx context.Context, args []string, opt Options) int {
	if len(args) == 0 {
		PrintHelp()
		return 2
	}
	cmd, a := args[0], args[1:]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		PrintHelp()
		return 0
	}

	r, err := newRunner(ctx, opt)
	if err != nil {
		ui.Fail(err.Error())
		return 1
	}

	switch cmd {
	case "ls":
		return r.doBrowse()

	case "print":
		group := opt.Group
		for _, f := range a {
			switch f {
			case "--group", "-group", "-g":
				group = true
			default:
				ui.Fail("usage: posts print [--group]")
				return 2
			}
		}
		return r.doPrint(group)

	case "add":
		if len(a) == 0 {
			ui.Fail("usage: posts add <name...>")
			return 2
		}
		return r.doAdd(strings.Join(a, " "))

	case "done", "up", "down", "rm", "show":
		if len(a) != 1 {
			ui.Fail(fmt.Sprintf("usage: posts %s <index>", cmd))
			return 2
		}
		n, err := strconv.Atoi(a[0])
		if err != nil {
			ui.Fail(cmd + ": not a number: " + a[0])
			return 2
		}
		return r.doAt(cmd, n)

	case "rename":
		if len(a) < 2 {
			ui.Fail("usage: posts rename <index> <name...>")
			return 2
		}
		n, err := strconv.Atoi(a[0])
		if err != nil {
			ui.Fail("rename: not a number: " + a[0])
			return 2
		}
		return r.doRename(n, strings.Join(a[1:], " "))

	case "auth":
		return r.doAuth(a)

	case "config":
		return r.doConfig()

	case "serve":
		return r.doServe(a)
	}

	ui.Fail("unknown subcommand: " + cmd)
	PrintHelp()
	return 2
}

func PrintHelp() {
	fmt.Fprint(ui.Stdout(), `posts - browse and vote on your posts

Usage:
  posts [flags] <subcommand> [args]

Subcommands:
  ls                      Interactive list (a add, e rename, space done, +/- vote, d delete, v view, r reload)
  print [--group]         Print the list once
  add <name...>           Add a new post due in seven days
  done <index>            Toggle done for the post at 1-based index
  up <index>              Upvote the post at index
  down <index>            Downvote the post at index
  rename <index> <name>   Rename the post at index
  rm <index>              Delete the post at index
  show <index>            Show every field of the post at index
  auth login [token]      Save an access token (prints the login URL)
  auth logout             Forget the saved token
  auth status             Show where the token comes from and when it expires
  auth whoami             Show the token subject
  config                  Print the effective configuration
  serve [--addr :8080]    Run a local in-memory backend

Examples:
  posts add "Sunset at the pier"
  posts print --group
  posts up 2
  POSTS_API_ENDPOINT=http://localhost:8080 posts ls
`)
}

func newRunner(ctx context.Context, opt Options) (*runner, error) {
	var (
		cfg config.Config
		err error
	)
	if opt.ConfigPath != "" {
		cfg, err = config.Load(opt.ConfigPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	creds := opt.Credentials
	if creds == nil {
		if creds, err = auth.NewStore(); err != nil {
			return nil, err
		}
	}
	logger := opt.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &runner{ctx: ctx, opt: opt, cfg: cfg, creds: creds, log: logger}, nil
}

// synchronizer builds the client stack. With notify set, failed operations
// are reported on stderr as they happen.
func (r *runner) synchronizer(notify bool) (*listsync.Synchronizer, error) {
	return r.synchronizerWith(notify, r.log)
}

func (r *runner) synchronizerWith(notify bool, logger *log.Logger) (*listsync.Synchronizer, error) {
	var tokens auth.TokenSource = r.creds
	if r.opt.Tokens != nil {
		tokens = r.opt.Tokens
	}
	client, err := api.New(r.cfg, tokens, api.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	policy, err := listsync.ParseVotePolicy(r.cfg.VotePolicy)
	if err != nil {
		return nil, err
	}
	opts := []listsync.Option{listsync.WithLogger(logger), listsync.WithVotePolicy(policy)}
	if notify {
		opts = append(opts, listsync.WithNotifier(listsync.NotifyFunc(ui.Fail)))
	}
	return listsync.New(client, opts...), nil
}

// loaded returns a synchronizer holding the current remote list.
func (r *runner) loaded() (*listsync.Synchronizer, int) {
	s, err := r.synchronizer(true)
	if err != nil {
		ui.Fail(err.Error())
		return nil, 1
	}
	if err := s.Load(r.ctx); err != nil {
		return nil, r.fail(err)
	}
	return s, 0
}

// fail reports err unless the synchronizer already notified it.
func (r *runner) fail(err error) int {
	switch {
	case errors.Is(err, listsync.ErrOperationFailed) && !errors.Is(err, context.Canceled):
	case errors.Is(err, listsync.ErrEmptyName):
		ui.Fail(err.Error())
		return 2
	default:
		ui.Fail(err.Error())
	}
	if errors.Is(err, auth.ErrNoToken) || errors.Is(err, auth.ErrTokenExpired) {
		ui.Hint("run `posts auth login` or set " + auth.EnvToken)
	}
	return 1
}

func (r *runner) resolve(s *listsync.Synchronizer, userIndex int) (string, bool) {
	id, ok := s.IDAt(userIndex - 1)
	if !ok {
		ui.Fail(fmt.Sprintf("index out of range: have %d, got %d", s.Len(), userIndex))
		ui.Hint("run `posts print` to see valid indexes")
	}
	return id, ok
}

// -------------- subcommand impls ----------------

func (r *runner) doBrowse() int {
	logger, closeLog, err := viewLogger(r.log)
	if err != nil {
		ui.Fail("log file: " + err.Error())
		return 1
	}
	defer closeLog()

	s, err := r.synchronizerWith(false, logger)
	if err != nil {
		ui.Fail(err.Error())
		return 1
	}
	if err := tui.Run(r.ctx, s); err != nil {
		ui.Fail("tui: " + err.Error())
		return 1
	}
	return 0
}

func (r *runner) doPrint(group bool) int {
	s, code := r.loaded()
	if s == nil {
		return code
	}
	printList(s.Items(), group)
	return 0
}

func (r *runner) doAdd(name string) int {
	s, err := r.synchronizer(true)
	if err != nil {
		ui.Fail(err.Error())
		return 1
	}
	it, err := s.Create(r.ctx, name)
	if err != nil {
		return r.fail(err)
	}
	ui.OK(fmt.Sprintf("added %q due %s", it.Name, it.DueDate))
	return 0
}

func (r *runner) doAt(cmd string, userIndex int) int {
	s, code := r.loaded()
	if s == nil {
		return code
	}
	id, ok := r.resolve(s, userIndex)
	if !ok {
		return 2
	}

	var (
		err  error
		verb string
	)
	switch cmd {
	case "done":
		err, verb = s.ToggleDone(r.ctx, id), "toggled"
	case "up":
		err, verb = s.Upvote(r.ctx, id), "upvoted"
	case "down":
		err, verb = s.Downvote(r.ctx, id), "downvoted"
	case "rm":
		err, verb = s.Delete(r.ctx, id), "removed"
	case "show":
		it, _ := s.Item(id)
		printItem(it)
		return 0
	}
	if err != nil {
		return r.fail(err)
	}
	ui.OK(verb)
	return 0
}

func (r *runner) doRename(userIndex int, name string) int {
	s, code := r.loaded()
	if s == nil {
		return code
	}
	id, ok := r.resolve(s, userIndex)
	if !ok {
		return 2
	}
	if err := s.Rename(r.ctx, id, name); err != nil {
		return r.fail(err)
	}
	ui.OK("renamed")
	return 0
}

func (r *runner) doConfig() int {
	c := r.cfg
	t := ui.Current()
	row := func(k, v string) string { return fmt.Sprintf("%-14s %s", ui.C(t.Muted, k), v) }
	ui.Panel([]string{
		ui.C(t.Title, "Config"),
		"",
		row("endpoint", c.APIEndpoint),
		row("resource", c.Resource),
		row("vote policy", c.VotePolicy),
		row("timeout", c.Timeout.String()),
		row("auth domain", c.Auth.Domain),
		row("client id", c.Auth.ClientID),
		row("callback", c.Auth.CallbackURL),
	})
	return 0
}

func (r *runner) stdin() io.Reader {
	if r.opt.Stdin != nil {
		return r.opt.Stdin
	}
	return os.Stdin
}

func readLine(in io.Reader) string {
	sc := bufio.NewScanner(in)
	if sc.Scan() {
		return strings.TrimSpace(sc.Text())
	}
	return ""
}

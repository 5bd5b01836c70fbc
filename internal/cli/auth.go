package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/idilsaglam/posts/internal/auth"
	"github.com/idilsaglam/posts/internal/ui"
)

func (r *runner) doAuth(a []string) int {
	if len(a) == 0 {
		ui.Fail("usage: posts auth login|logout|status|whoami")
		return 2
	}
	switch a[0] {
	case "login":
		return r.authLogin(a[1:])
	case "logout":
		if err := r.creds.Delete(); err != nil {
			ui.Fail("logout: " + err.Error())
			return 1
		}
		ui.OK("logged out")
		return 0
	case "status":
		return r.authStatus()
	case "whoami":
		return r.authWhoami()
	}
	ui.Fail("unknown auth command: " + a[0])
	return 2
}

// authLogin stores a token obtained from the identity provider. Without an
// argument it prints the authorize URL and reads the token from stdin.
func (r *runner) authLogin(a []string) int {
	if len(a) > 1 {
		ui.Fail("usage: posts auth login [token]")
		return 2
	}
	var token string
	if len(a) == 1 {
		token = a[0]
	} else {
		fmt.Fprintln(ui.Stdout(), "Open this URL, sign in, then paste the access token:")
		fmt.Fprintln(ui.Stdout(), "  "+r.cfg.Auth.AuthorizeURL(uuid.NewString()))
		fmt.Fprint(ui.Stdout(), "token: ")
		token = readLine(r.stdin())
	}
	if token == "" {
		ui.Fail("login: empty token")
		return 2
	}
	if err := r.creds.Set(token, nil); err != nil {
		ui.Fail("login: " + err.Error())
		return 1
	}
	ui.OK("token saved")
	return 0
}

func (r *runner) authStatus() int {
	ti, err := r.creds.Get()
	if err != nil {
		ui.Fail("status: " + err.Error())
		return 1
	}
	if ti == nil {
		ui.Fail("not logged in")
		ui.Hint("run `posts auth login` or set " + auth.EnvToken)
		return 1
	}
	t := ui.Current()
	lines := []string{
		ui.C(t.Title, "Auth"),
		"",
		fmt.Sprintf("%-8s %s", "source", ti.Source),
	}
	if !ti.CreatedAt.IsZero() {
		lines = append(lines, fmt.Sprintf("%-8s %s", "saved", humanize.Time(ti.CreatedAt)))
	}
	switch {
	case ti.ExpiresAt == nil:
		lines = append(lines, fmt.Sprintf("%-8s %s", "expires", ui.C(t.Muted, "unknown")))
	case ti.Expired(time.Now()):
		lines = append(lines, fmt.Sprintf("%-8s %s", "expires", ui.C(t.Error, "expired "+humanize.Time(*ti.ExpiresAt))))
	default:
		lines = append(lines, fmt.Sprintf("%-8s %s", "expires", humanize.Time(*ti.ExpiresAt)))
	}
	ui.Panel(lines)
	return 0
}

func (r *runner) authWhoami() int {
	ti, err := r.creds.Get()
	if err != nil {
		ui.Fail("whoami: " + err.Error())
		return 1
	}
	if ti == nil {
		ui.Fail("not logged in")
		return 1
	}
	c, err := auth.Inspect(ti.Token)
	if err != nil {
		ui.Fail("whoami: " + err.Error())
		return 1
	}
	fmt.Fprintln(ui.Stdout(), c.Subject)
	if c.Issuer != "" && c.Issuer != r.cfg.Auth.Issuer() {
		ui.Hint("token issued by " + c.Issuer + ", expected " + r.cfg.Auth.Issuer())
	}
	return 0
}

package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MicahParks/keyfunc"

	"github.com/idilsaglam/posts/internal/auth"
	"github.com/idilsaglam/posts/internal/devserver"
	"github.com/idilsaglam/posts/internal/ui"
)

const envDevSecret = "POSTS_DEV_SECRET"

// doServe runs the in-memory backend. Tokens are checked with a shared secret
// when one is given, against the identity provider's keys with --jwks, and
// not at all otherwise.
func (r *runner) doServe(a []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	addr := fs.String("addr", ":8080", "listen address")
	secret := fs.String("secret", os.Getenv(envDevSecret), "HS256 secret for bearer tokens")
	useJWKS := fs.Bool("jwks", false, "verify RS256 tokens with the identity provider's JWKS")
	if err := fs.Parse(a); err != nil {
		ui.Fail("usage: posts serve [--addr :8080] [--secret s | --jwks]")
		return 2
	}

	var authn devserver.Authenticator = devserver.InsecureAuth{}
	switch {
	case *useJWKS:
		jwks, err := keyfunc.Get(r.cfg.Auth.JWKSURL(), keyfunc.Options{
			RefreshInterval: time.Hour,
			RefreshErrorHandler: func(err error) {
				r.log.WithError(err).Warn("jwks refresh failed")
			},
		})
		if err != nil {
			ui.Fail("jwks: " + err.Error())
			return 1
		}
		defer jwks.EndBackground()
		authn = devserver.NewJWKSAuth(jwks, r.cfg.Auth.ClientID, r.cfg.Auth.Issuer())
	case *secret != "":
		authn = devserver.NewSecretAuth([]byte(*secret), "")
		tok, err := devserver.MintToken([]byte(*secret), "dev", "", 24*time.Hour)
		if err != nil {
			ui.Fail("mint token: " + err.Error())
			return 1
		}
		fmt.Fprintf(ui.Stdout(), "export %s=%s\n", auth.EnvToken, tok)
	default:
		ui.Hint("tokens are not verified; pass --secret or --jwks to check them")
	}

	e := devserver.New(r.cfg.Resource, devserver.NewMemoryStore(), authn, r.log)
	ui.OK(fmt.Sprintf("serving /%s on %s", r.cfg.Resource, *addr))
	if err := devserver.Run(r.ctx, e, *addr); err != nil {
		ui.Fail("serve: " + err.Error())
		return 1
	}
	return 0
}

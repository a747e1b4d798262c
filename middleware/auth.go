package middleware

import (
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/deemkeen/glyptodon/util"
	gossh "golang.org/x/crypto/ssh"
)

// PublicKeyAuth admits the ssh keys listed under adminKeys in the
// config. With an empty list any key is admitted, so a fresh install
// stays reachable until keys are pinned.
func PublicKeyAuth(conf *util.ConfigStore) ssh.PublicKeyHandler {
	return func(ctx ssh.Context, key ssh.PublicKey) bool {
		allowed := conf.Conf().AdminKeys
		if len(allowed) == 0 {
			return true
		}

		for _, entry := range allowed {
			parsed, _, _, _, err := gossh.ParseAuthorizedKey([]byte(entry))
			if err != nil {
				log.Warn("Skipping unparsable admin key in config", "err", err)
				continue
			}
			if ssh.KeysEqual(key, parsed) {
				return true
			}
		}

		log.Warn("Rejected ssh key", "user", ctx.User(), "addr", ctx.RemoteAddr().String())
		return false
	}
}

// AuthMiddleware logs who connected once a session is established.
func AuthMiddleware() wish.Middleware {
	return func(h ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			util.LogPublicKey(s)
			h(s)
		}
	}
}

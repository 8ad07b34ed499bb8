package http

import (
	"context"
	stdhttp "net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/brandchat-server/internal/auth"
	"github.com/vovakirdan/brandchat-server/internal/store"
)

const headerProtocol = "Sec-WebSocket-Protocol"

// offeredProtocols returns the ordered Sec-WebSocket-Protocol entries.
func offeredProtocols(h stdhttp.Header) []string {
	var out []string
	for _, value := range h.Values(headerProtocol) {
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// ResolveHandshake treats the last offered subprotocol as an access token.
// When it resolves, the token is removed from the list and from the header
// (the header is dropped once empty). Otherwise the identity is anonymous
// and the header is untouched. Other positions are never inspected.
func ResolveHandshake(ctx context.Context, resolver auth.TokenResolver, h stdhttp.Header) (*store.User, []string) {
	offered := offeredProtocols(h)
	if len(offered) == 0 {
		return nil, offered
	}

	user, err := resolver.ResolveToken(ctx, offered[len(offered)-1])
	if err != nil {
		return nil, offered
	}

	offered = offered[:len(offered)-1]
	if len(offered) == 0 {
		h.Del(headerProtocol)
	} else {
		h.Set(headerProtocol, strings.Join(offered, ", "))
	}
	return user, offered
}

type handshakeKey int

const (
	userKey handshakeKey = iota
	offeredKey
)

// HandshakeMiddleware resolves the subprotocol credential of websocket
// upgrade requests and stores the identity and remaining offers in the
// request context.
func HandshakeMiddleware(resolver auth.TokenResolver, logger *zerolog.Logger) func(stdhttp.Handler) stdhttp.Handler {
	return func(next stdhttp.Handler) stdhttp.Handler {
		return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			ctx := r.Context()
			user, offered := ResolveHandshake(ctx, resolver, r.Header)
			if user != nil {
				ctx = context.WithValue(ctx, userKey, user)
			} else {
				logger.Debug().Str("path", r.URL.Path).Msg("anonymous websocket handshake")
			}
			ctx = context.WithValue(ctx, offeredKey, offered)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestUser(ctx context.Context) *store.User {
	user, _ := ctx.Value(userKey).(*store.User)
	return user
}

func requestOffered(ctx context.Context) []string {
	offered, _ := ctx.Value(offeredKey).([]string)
	return offered
}

// contextUser returns the user set by AuthMiddleware.
func contextUser(c *gin.Context) *store.User {
	if v, ok := c.Get(ContextKeyUser); ok {
		if user, ok := v.(*store.User); ok {
			return user
		}
	}
	return nil
}

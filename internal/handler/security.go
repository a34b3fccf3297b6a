package handler

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/session"
)

// SecurityHandler authenticates shoppers by the bearer token the marketplace
// backend issued them.
type SecurityHandler struct {
	parser *session.Parser
}

// NewSecurityHandler creates a SecurityHandler.
func NewSecurityHandler(parser *session.Parser) *SecurityHandler {
	return &SecurityHandler{parser: parser}
}

// Authenticate rejects requests without a valid token and stores the
// session in the request context.
func (s *SecurityHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.parser.ParseHeader(r.Header.Get("Authorization"))
		if err != nil {
			zctx.From(r.Context()).Debug("Rejected token", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := session.WithContext(r.Context(), sess)
		ctx = zctx.With(ctx, zap.String("user_id", sess.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFrom returns the session Authenticate stored.
func sessionFrom(r *http.Request) session.Session {
	sess, _ := session.FromContext(r.Context())
	return sess
}

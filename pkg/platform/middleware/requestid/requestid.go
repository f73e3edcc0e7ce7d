package requestid

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"profilegate/pkg/requestcontext"
)

// Header carries the correlation ID in and out of the service.
const Header = "X-Request-ID"

const maxLength = 128

// Middleware reuses an inbound X-Request-ID when it is sane, otherwise mints
// a UUID. The ID is echoed on the response and stored in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(Header))
		if id == "" || len(id) > maxLength {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

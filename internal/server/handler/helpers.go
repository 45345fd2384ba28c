package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	maxDepth        = 500
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// queryInt returns the named parameter when it parses as an int >= floor,
// otherwise def.
func queryInt(q url.Values, name string, def, floor int) int {
	n, err := strconv.Atoi(q.Get(name))
	if err != nil || n < floor {
		return def
	}
	return n
}

// queryTime parses an RFC 3339 parameter; absent or malformed gives nil.
func queryTime(q url.Values, name string) *time.Time {
	t, err := time.Parse(time.RFC3339, q.Get(name))
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// parseListOpts reads limit (default 50, max 500), offset, since and until.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()
	return domain.ListOpts{
		Limit:  min(queryInt(q, "limit", defaultPageSize, 1), maxPageSize),
		Offset: queryInt(q, "offset", 0, 0),
		Since:  queryTime(q, "since"),
		Until:  queryTime(q, "until"),
	}
}

func parseDepth(r *http.Request, def int) int {
	return min(queryInt(r.URL.Query(), "depth", def, 1), maxDepth)
}

func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}

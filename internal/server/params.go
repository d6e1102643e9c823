package server

import (
	"net/http"
	"strings"

	"github.com/oshilog/chatview/internal/analytics"
)

// parseRequest reads window, persona and q from the query string.
// On a bad window it writes a 400 and returns false.
func parseRequest(
	w http.ResponseWriter, r *http.Request,
) (analytics.Request, bool) {
	q := r.URL.Query()
	win, err := analytics.ParseWindow(q.Get("window"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return analytics.Request{}, false
	}
	return analytics.Request{
		Window:    win,
		PersonaID: strings.TrimSpace(q.Get("persona")),
		Search:    strings.TrimSpace(q.Get("q")),
	}, true
}

package classroom

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/quipper/poc/classroom/be/pkg/common/logger"
	notifications "github.com/quipper/poc/classroom/be/pkg/repositories/notifications"
	roster "github.com/quipper/poc/classroom/be/pkg/repositories/roster"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// listMembers GET /api/classes/{classId}/members
func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadOwnedClass(w, r)
	if !ok {
		return
	}
	offset, limit := pageParams(r)
	page, total, err := h.roster.ListMembersPage(r.Context(), c.ID, offset, limit)
	if err != nil {
		logger.Error("list members of %s: %v", c.ID, err)
		http.Error(w, "failed to list members", http.StatusInternalServerError)
		return
	}
	setNextLink(w, r, offset, limit, total)
	// members serializes as [] instead of null when empty
	if page == nil {
		page = []*roster.Member{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      absoluteURL(r),
		"class":   map[string]any{"id": c.ID, "name": c.Name},
		"total":   total,
		"members": page,
	})
}

// listNotifications GET /api/classes/{classId}/notifications
func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadOwnedClass(w, r)
	if !ok {
		return
	}
	limit := 20
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	list, err := h.notifications.ListByClass(r.Context(), c.ID, limit)
	if err != nil {
		logger.Error("list notifications of %s: %v", c.ID, err)
		http.Error(w, "failed to list notifications", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*notifications.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func pageParams(r *http.Request) (offset, limit int) {
	q := r.URL.Query()
	limit = defaultPageLimit
	if ls := q.Get("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 {
			limit = min(v, maxPageLimit)
		}
	}
	if os := q.Get("offset"); os != "" {
		if v, err := strconv.Atoi(os); err == nil && v >= 0 {
			offset = v
		}
	}
	return offset, limit
}

// setNextLink sets Link: rel="next" when more pages follow.
func setNextLink(w http.ResponseWriter, r *http.Request, offset, limit, total int) {
	if offset+limit < total {
		w.Header().Add("Link", "<"+buildPageURL(r, offset+limit, limit)+">; rel=\"next\"")
	}
}

// absoluteURL builds an absolute URL for the current request path using
// X-Forwarded-* headers when present, otherwise falls back to r.Host and TLS.
func absoluteURL(r *http.Request) string {
	scheme, host := schemeHost(r)
	return scheme + "://" + host + r.URL.Path
}

func schemeHost(r *http.Request) (string, string) {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return scheme, host
}

func buildPageURL(r *http.Request, offset, limit int) string {
	scheme, host := schemeHost(r)
	u := url.URL{Scheme: scheme, Host: host, Path: r.URL.Path}
	q := r.URL.Query()
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()
	return u.String()
}

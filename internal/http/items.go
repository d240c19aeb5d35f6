package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/scripty-dev/starter-api/internal/domain"
	"github.com/scripty-dev/starter-api/internal/repository"
)

// itemRoutes dispatches the collection, member and change feed routes below
// prefix.
func (r *Router) itemRoutes(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		rest := strings.Trim(strings.TrimPrefix(req.URL.Path, prefix), "/")
		switch {
		case rest == "":
			r.handleItemCollection(w, req)
		case rest == "ws":
			r.handleItemsWS(w, req)
		case rest == "stream":
			r.handleItemsStream(w, req)
		case strings.Contains(rest, "/"):
			r.handleNotFound(w, req)
		default:
			r.handleItemMember(w, req, rest)
		}
	}
}

func (r *Router) handleItemCollection(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		r.listItems(w, req)
	case http.MethodPost:
		r.guardWrites(r.createItem)(w, req)
	default:
		r.methodNotAllowed(w, req, http.MethodGet, http.MethodPost)
	}
}

func (r *Router) handleItemMember(w http.ResponseWriter, req *http.Request, id string) {
	switch req.Method {
	case http.MethodGet:
		r.getItem(w, req, id)
	case http.MethodPut:
		r.guardWrites(func(w http.ResponseWriter, req *http.Request) {
			r.updateItem(w, req, id)
		})(w, req)
	case http.MethodDelete:
		r.guardWrites(func(w http.ResponseWriter, req *http.Request) {
			r.deleteItem(w, req, id)
		})(w, req)
	default:
		r.methodNotAllowed(w, req, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (r *Router) guardWrites(next http.HandlerFunc) http.HandlerFunc {
	if r.itemsRequireAuth {
		return r.requireAuth(next)
	}
	return next
}

func (r *Router) listItems(w http.ResponseWriter, req *http.Request) {
	items, err := r.items.List(req.Context())
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	writeList(w, items)
}

func (r *Router) getItem(w http.ResponseWriter, req *http.Request, id string) {
	found, err := r.items.Get(req.Context(), id)
	if err != nil {
		r.respondError(w, req, itemError(err, id))
		return
	}
	writeSuccess(w, http.StatusOK, found)
}

func (r *Router) createItem(w http.ResponseWriter, req *http.Request) {
	var input domain.ItemInput
	if err := decodeJSON(w, req, &input); err != nil {
		r.respondError(w, req, err)
		return
	}
	created, err := r.items.Create(req.Context(), input)
	if err != nil {
		r.respondError(w, req, itemError(err, ""))
		return
	}
	writeSuccess(w, http.StatusCreated, created)
}

func (r *Router) updateItem(w http.ResponseWriter, req *http.Request, id string) {
	var input domain.ItemInput
	if err := decodeJSON(w, req, &input); err != nil {
		r.respondError(w, req, err)
		return
	}
	updated, err := r.items.Update(req.Context(), id, input)
	if err != nil {
		r.respondError(w, req, itemError(err, id))
		return
	}
	writeSuccess(w, http.StatusOK, updated)
}

func (r *Router) deleteItem(w http.ResponseWriter, req *http.Request, id string) {
	if err := r.items.Delete(req.Context(), id); err != nil {
		r.respondError(w, req, itemError(err, id))
		return
	}
	writeSuccess(w, http.StatusOK, struct{}{})
}

// itemError maps service failures onto the HTTP taxonomy. Unknown errors pass
// through untouched and become a 500.
func itemError(err error, id string) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return wrapAPIError(http.StatusBadRequest, verr.Error(), err)
	case errors.Is(err, repository.ErrNotFound):
		return wrapAPIError(http.StatusNotFound, "Item not found with id of "+id, err)
	default:
		return err
	}
}

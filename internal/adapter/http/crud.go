package http

import (
	"context"
	"net/http"

	"github.com/flourisha/brain/internal/domain/access"
)

// ---------------------------------------------------------------------------
// Generic claims-scoped handler factories
// ---------------------------------------------------------------------------

// handleGet creates a handler that retrieves a single resource by URL param "id".
func handleGet[T any](getFn func(ctx context.Context, c access.Claims, id string) (*T, error), notFoundMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := requireClaims(w, r)
		if !ok {
			return
		}
		item, err := getFn(r.Context(), c, urlParam(r, "id"))
		if err != nil {
			writeDomainError(w, r, err, notFoundMsg)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

// handleListByID creates a handler that lists the records hanging off the resource
// named by URL param "id".
func handleListByID[T any](listFn func(ctx context.Context, c access.Claims, id string) ([]T, error), notFoundMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := requireClaims(w, r)
		if !ok {
			return
		}
		items, err := listFn(r.Context(), c, urlParam(r, "id"))
		if err != nil {
			writeDomainError(w, r, err, notFoundMsg)
			return
		}
		if items == nil {
			items = []T{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// handleCreate creates a handler that decodes a JSON body and creates a resource.
func handleCreate[Req any, Res any](createFn func(ctx context.Context, c access.Claims, req Req) (*Res, error), notFoundMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := requireClaims(w, r)
		if !ok {
			return
		}
		req, ok := readJSON[Req](w, r, defaultBodyLimit)
		if !ok {
			return
		}
		res, err := createFn(r.Context(), c, req)
		if err != nil {
			writeDomainError(w, r, err, notFoundMsg)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

// handleUpdate creates a handler that decodes a JSON body and updates the resource named
// by URL param "id".
func handleUpdate[Req any, Res any](updateFn func(ctx context.Context, c access.Claims, id string, req Req) (*Res, error), notFoundMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := requireClaims(w, r)
		if !ok {
			return
		}
		req, ok := readJSON[Req](w, r, defaultBodyLimit)
		if !ok {
			return
		}
		res, err := updateFn(r.Context(), c, urlParam(r, "id"), req)
		if err != nil {
			writeDomainError(w, r, err, notFoundMsg)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

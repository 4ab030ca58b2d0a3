package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// mountCRUD exposes list/get/create/update/delete for one entity store
// under path. Ids always come from the URL or the store, never the body.
func mountCRUD[T any](r chi.Router, path string, store storage.Store[T], kind storage.Kind[T]) {
	r.Route(path, func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			items, err := store.List(r.Context())
			if err != nil {
				writeError(w, r, err)
				return
			}
			if items == nil {
				items = []T{}
			}
			writeJSON(w, http.StatusOK, items)
		})

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var v T
			if err := decodeJSON(w, r, &v); err != nil {
				writeError(w, r, err)
				return
			}
			kind.SetID(&v, "")
			saved, err := store.Add(r.Context(), v)
			if err != nil {
				writeError(w, r, err)
				return
			}
			log.FromContext(r.Context()).InfoContext(r.Context(), "Created "+kind.Name, "id", kind.ID(saved))
			w.Header().Set("Location", "/api"+path+"/"+kind.ID(saved))
			writeJSON(w, http.StatusCreated, saved)
		})

		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			v, err := store.Get(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, v)
		})

		r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
			var v T
			if err := decodeJSON(w, r, &v); err != nil {
				writeError(w, r, err)
				return
			}
			kind.SetID(&v, chi.URLParam(r, "id"))
			saved, err := store.Update(r.Context(), v)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, saved)
		})

		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			if err := store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
				writeError(w, r, err)
				return
			}
			noContent(w)
		})
	})
}

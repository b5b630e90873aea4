package handler

import (
	"net/http"

	"github.com/oapi-codegen/runtime"

	"github.com/voyagesur/backend/internal/domain"
)

// ReferenceListResponse holds the documents found for a batch lookup and
// the requested ids that matched nothing.
type ReferenceListResponse struct {
	Data    any      `json:"data"`
	Missing []string `json:"missing"`
}

// GetReference implements GET /v1/reference/{collection}/{id}.
func (s *Server) GetReference(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	collection, ok := pathParam(w, r, "collection")
	if !ok {
		return
	}
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	doc, err := s.references.Lookup(r.Context(), domain.Collection(collection), id)
	if err != nil {
		s.writeServiceError(w, r, err, collection+" entry not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// ListReferences implements GET /v1/reference/{collection}?ids=a,b,c.
// Unknown ids are reported in missing rather than failing the request.
func (s *Server) ListReferences(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	collection, ok := pathParam(w, r, "collection")
	if !ok {
		return
	}
	var ids []string
	if err := runtime.BindQueryParameter("form", false, true, "ids", r.URL.Query(), &ids); err != nil {
		requestError(w, "ids is required")
		return
	}
	found, missing, err := s.references.LookupMany(r.Context(), domain.Collection(collection), ids)
	if err != nil {
		s.writeServiceError(w, r, err, "unknown collection "+collection)
		return
	}
	writeJSON(w, http.StatusOK, ReferenceListResponse{Data: found, Missing: nonNil(missing)})
}

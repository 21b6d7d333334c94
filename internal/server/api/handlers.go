package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/draftnotes/notegraph/internal/server/graph"
	"github.com/draftnotes/notegraph/internal/server/subscriptions"
)

// Server holds the HTTP server dependencies
type Server struct {
	repo graph.Repository
	subs *subscriptions.Manager
}

// New creates a new API server
func New(repo graph.Repository, subs *subscriptions.Manager) *Server {
	return &Server{repo: repo, subs: subs}
}

// Routes registers all endpoints on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)

	r.Route("/notes", func(r chi.Router) {
		r.Post("/flat", s.CreateNote)
		r.Get("/flat", s.ListNotes)
		r.Get("/flat/{id}", s.GetNote)
		r.Put("/flat/{id}", s.UpdateNote)
		r.Delete("/flat/{id}", s.DeleteNote)
		r.Get("/flat/{id}/path", s.GetNotePath)
		r.Get("/paths", s.GetNotePaths)

		r.Get("/tree", s.GetNoteTree)
		r.Put("/tree", s.UpdateNoteTree)

		r.Get("/hierarchy", s.ListNoteHierarchy)
		r.Post("/hierarchy/attach", s.AttachNote)
		r.Delete("/hierarchy/detach/{id}", s.DetachNote)
	})

	r.Route("/tags", func(r chi.Router) {
		r.Post("/", s.CreateTag)
		r.Get("/", s.ListTags)

		r.Get("/tree", s.GetTagTree)

		r.Get("/notes", s.ListNoteTags)
		r.Post("/notes", s.AttachNoteTag)
		r.Delete("/notes/{noteID}/{tagID}", s.DetachNoteTag)

		r.Get("/hierarchy", s.ListTagHierarchy)
		r.Post("/hierarchy/attach", s.AttachTag)
		r.Delete("/hierarchy/detach/{id}", s.DetachTag)

		r.Get("/{id}", s.GetTag)
		r.Put("/{id}", s.UpdateTag)
		r.Delete("/{id}", s.DeleteTag)
	})

	r.Route("/subscriptions", func(r chi.Router) {
		r.Post("/", s.CreateSubscription)
		r.Get("/", s.ListSubscriptions)
		r.Get("/{id}", s.GetSubscription)
		r.Put("/{id}", s.UpdateSubscription)
		r.Delete("/{id}", s.DeleteSubscription)
	})

	r.Get("/events", s.StreamEvents)
}

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// writeError maps repository error kinds onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status, kind := http.StatusInternalServerError, "internal"
	switch {
	case graph.IsNotFound(err):
		status, kind = http.StatusNotFound, "not_found"
	case graph.IsConflict(err):
		status, kind = http.StatusConflict, "conflict"
	case graph.IsCycleDetected(err):
		status, kind = http.StatusConflict, "cycle_detected"
	case graph.IsInvalidTree(err):
		status, kind = http.StatusBadRequest, "invalid_tree"
	case graph.IsInvalidInput(err):
		status, kind = http.StatusBadRequest, "invalid_input"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Error: kind, Detail: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, graph.ErrInvalidInput
	}
	return id, nil
}

// --- Notes ---

// CreateNoteRequest is the request body for creating a note
type CreateNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// CreateNote handles POST /notes/flat
func (s *Server) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	note, err := s.repo.CreateNote(r.Context(), req.Title, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// noteMeta strips content from a note for exclude_content reads.
func noteMeta(n graph.Note) graph.NoteMeta {
	return graph.NoteMeta{
		ID:         n.ID,
		Title:      n.Title,
		CreatedAt:  n.CreatedAt,
		ModifiedAt: n.ModifiedAt,
	}
}

// GetNote handles GET /notes/flat/{id}
// Supports ?exclude_content=true to omit the content field.
func (s *Server) GetNote(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	note, err := s.repo.GetNote(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("exclude_content") == "true" {
		writeJSON(w, http.StatusOK, noteMeta(*note))
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// ListNotes handles GET /notes/flat
func (s *Server) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.repo.ListNotes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("exclude_content") == "true" {
		metas := make([]graph.NoteMeta, 0, len(notes))
		for _, n := range notes {
			metas = append(metas, noteMeta(n))
		}
		writeJSON(w, http.StatusOK, metas)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

// UpdateNoteRequest is the request body for updating a note. Omitted
// fields are left unchanged.
type UpdateNoteRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// UpdateNote handles PUT /notes/flat/{id}
func (s *Server) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	note, err := s.repo.UpdateNote(r.Context(), id, req.Title, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /notes/flat/{id}
func (s *Server) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.repo.DeleteNote(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetNotePath handles GET /notes/flat/{id}/path
func (s *Server) GetNotePath(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	path, err := s.repo.NotePath(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

// GetNotePaths handles GET /notes/paths
func (s *Server) GetNotePaths(w http.ResponseWriter, r *http.Request) {
	paths, err := s.repo.NotePaths(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paths)
}

// --- Note tree ---

// GetNoteTree handles GET /notes/tree
// Supports ?hierarchy_type=block|subpage, defaulting to block.
func (s *Server) GetNoteTree(w http.ResponseWriter, r *http.Request) {
	hierarchyType := r.URL.Query().Get("hierarchy_type")
	if hierarchyType == "" {
		hierarchyType = graph.HierarchyBlock
	}

	tree, err := s.repo.ProjectNoteTree(r.Context(), hierarchyType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// UpdateNoteTree handles PUT /notes/tree
func (s *Server) UpdateNoteTree(w http.ResponseWriter, r *http.Request) {
	var desired []graph.TreeNoteInput
	if err := json.NewDecoder(r.Body).Decode(&desired); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.repo.ReconcileNoteTree(r.Context(), desired); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Note hierarchy ---

// AttachNoteRequest is the request body for attaching a child note
type AttachNoteRequest struct {
	ParentNoteID  int64  `json:"parent_note_id"`
	ChildNoteID   int64  `json:"child_note_id"`
	HierarchyType string `json:"hierarchy_type"`
}

// AttachNote handles POST /notes/hierarchy/attach
func (s *Server) AttachNote(w http.ResponseWriter, r *http.Request) {
	var req AttachNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.HierarchyType == "" {
		req.HierarchyType = graph.HierarchyBlock
	}

	if err := s.repo.AttachNoteHierarchy(r.Context(), req.ChildNoteID, req.ParentNoteID, req.HierarchyType); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// DetachNote handles DELETE /notes/hierarchy/detach/{id}
func (s *Server) DetachNote(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.repo.DetachNoteHierarchy(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListNoteHierarchy handles GET /notes/hierarchy
func (s *Server) ListNoteHierarchy(w http.ResponseWriter, r *http.Request) {
	edges, err := s.repo.ListNoteHierarchyEdges(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, edges)
}

// --- Tags ---

// CreateTagRequest is the request body for creating or renaming a tag
type CreateTagRequest struct {
	Name string `json:"name"`
}

// CreateTag handles POST /tags
func (s *Server) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req CreateTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tag, err := s.repo.CreateTag(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

// GetTag handles GET /tags/{id}
func (s *Server) GetTag(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	tag, err := s.repo.GetTag(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

// ListTags handles GET /tags
func (s *Server) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.repo.ListTags(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// UpdateTag handles PUT /tags/{id}
func (s *Server) UpdateTag(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req CreateTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tag, err := s.repo.UpdateTag(r.Context(), id, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

// DeleteTag handles DELETE /tags/{id}
func (s *Server) DeleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.repo.DeleteTag(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Note-tag associations ---

// AttachNoteTagRequest is the request body for tagging a note
type AttachNoteTagRequest struct {
	NoteID int64 `json:"note_id"`
	TagID  int64 `json:"tag_id"`
}

// AttachNoteTag handles POST /tags/notes
func (s *Server) AttachNoteTag(w http.ResponseWriter, r *http.Request) {
	var req AttachNoteTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.repo.AttachTag(r.Context(), req.NoteID, req.TagID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// DetachNoteTag handles DELETE /tags/notes/{noteID}/{tagID}
func (s *Server) DetachNoteTag(w http.ResponseWriter, r *http.Request) {
	noteID, err := parseID(r, "noteID")
	if err != nil {
		writeError(w, err)
		return
	}
	tagID, err := parseID(r, "tagID")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.repo.DetachTag(r.Context(), noteID, tagID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListNoteTags handles GET /tags/notes
func (s *Server) ListNoteTags(w http.ResponseWriter, r *http.Request) {
	assocs, err := s.repo.ListNoteTagAssociations(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assocs)
}

// --- Tag hierarchy ---

// AttachTagRequest is the request body for attaching a child tag
type AttachTagRequest struct {
	ParentID int64 `json:"parent_id"`
	ChildID  int64 `json:"child_id"`
}

// AttachTag handles POST /tags/hierarchy/attach
func (s *Server) AttachTag(w http.ResponseWriter, r *http.Request) {
	var req AttachTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.repo.AttachTagHierarchy(r.Context(), req.ChildID, req.ParentID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// DetachTag handles DELETE /tags/hierarchy/detach/{id}
func (s *Server) DetachTag(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.repo.DetachTagHierarchy(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTagHierarchy handles GET /tags/hierarchy
func (s *Server) ListTagHierarchy(w http.ResponseWriter, r *http.Request) {
	edges, err := s.repo.ListTagHierarchyEdges(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, edges)
}

// GetTagTree handles GET /tags/tree
func (s *Server) GetTagTree(w http.ResponseWriter, r *http.Request) {
	tree, err := s.repo.ProjectTagTree(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// HealthCheck handles GET /health
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Package client is a Go client for the notegraph HTTP API.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client handles communication with a notegraph server
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	Status int
	Kind   string `json:"error"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// IsNotFound reports whether err is a 404 API error.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsConflict reports whether err is a 409 API error, covering both name
// conflicts and rejected cycles.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

// do issues one request and decodes the response into out when non-nil.
func (c *Client) do(method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	req, err := http.NewRequest(method, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Kind: "internal"}
		json.NewDecoder(resp.Body).Decode(apiErr)
		if apiErr.Detail == "" {
			apiErr.Detail = resp.Status
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Health checks that the server is reachable.
func (c *Client) Health() error {
	return c.do(http.MethodGet, "/health", nil, nil)
}

// --- Notes ---

// CreateNote creates a note and returns it with its assigned id.
func (c *Client) CreateNote(title, content string) (*Note, error) {
	var note Note
	err := c.do(http.MethodPost, "/notes/flat",
		map[string]string{"title": title, "content": content}, &note)
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// GetNote retrieves a note by id
func (c *Client) GetNote(id int64) (*Note, error) {
	var note Note
	if err := c.do(http.MethodGet, fmt.Sprintf("/notes/flat/%d", id), nil, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// ListNotes retrieves all notes
func (c *Client) ListNotes() ([]Note, error) {
	var notes []Note
	if err := c.do(http.MethodGet, "/notes/flat", nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// UpdateNote overwrites the provided fields of a note. Nil fields stay
// unchanged.
func (c *Client) UpdateNote(id int64, title, content *string) (*Note, error) {
	var note Note
	err := c.do(http.MethodPut, fmt.Sprintf("/notes/flat/%d", id),
		map[string]*string{"title": title, "content": content}, &note)
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// DeleteNote removes a note and all edges referencing it.
func (c *Client) DeleteNote(id int64) error {
	return c.do(http.MethodDelete, fmt.Sprintf("/notes/flat/%d", id), nil, nil)
}

// NotePath returns a note's hierarchy path, e.g. "/ Projects / Todo".
func (c *Client) NotePath(id int64) (string, error) {
	var out map[string]string
	if err := c.do(http.MethodGet, fmt.Sprintf("/notes/flat/%d/path", id), nil, &out); err != nil {
		return "", err
	}
	return out["path"], nil
}

// NotePaths returns the hierarchy path of every note, keyed by id.
func (c *Client) NotePaths() (map[int64]string, error) {
	var paths map[int64]string
	if err := c.do(http.MethodGet, "/notes/paths", nil, &paths); err != nil {
		return nil, err
	}
	return paths, nil
}

// --- Note tree ---

// NoteTree retrieves the rendered note tree for one hierarchy type.
// An empty hierarchyType means "block".
func (c *Client) NoteTree(hierarchyType string) ([]TreeNote, error) {
	path := "/notes/tree"
	if hierarchyType != "" {
		path += "?hierarchy_type=" + hierarchyType
	}
	var tree []TreeNote
	if err := c.do(http.MethodGet, path, nil, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// UpdateNoteTree submits a desired forest for reconciliation.
func (c *Client) UpdateNoteTree(desired []TreeNoteInput) error {
	return c.do(http.MethodPut, "/notes/tree", desired, nil)
}

// --- Note hierarchy ---

// AttachNote links child under parent. An empty hierarchyType means
// "block"; an existing edge for (child, type) is replaced.
func (c *Client) AttachNote(childID, parentID int64, hierarchyType string) error {
	return c.do(http.MethodPost, "/notes/hierarchy/attach", map[string]any{
		"parent_note_id": parentID,
		"child_note_id":  childID,
		"hierarchy_type": hierarchyType,
	}, nil)
}

// DetachNote removes all parent edges of a note.
func (c *Client) DetachNote(childID int64) error {
	return c.do(http.MethodDelete, fmt.Sprintf("/notes/hierarchy/detach/%d", childID), nil, nil)
}

// NoteHierarchy retrieves all note hierarchy edges
func (c *Client) NoteHierarchy() ([]NoteHierarchyEdge, error) {
	var edges []NoteHierarchyEdge
	if err := c.do(http.MethodGet, "/notes/hierarchy", nil, &edges); err != nil {
		return nil, err
	}
	return edges, nil
}

// --- Tags ---

// CreateTag creates a tag with a unique name.
func (c *Client) CreateTag(name string) (*Tag, error) {
	var tag Tag
	if err := c.do(http.MethodPost, "/tags/", map[string]string{"name": name}, &tag); err != nil {
		return nil, err
	}
	return &tag, nil
}

// ListTags retrieves all tags
func (c *Client) ListTags() ([]Tag, error) {
	var tags []Tag
	if err := c.do(http.MethodGet, "/tags/", nil, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// DeleteTag removes a tag and all edges referencing it.
func (c *Client) DeleteTag(id int64) error {
	return c.do(http.MethodDelete, fmt.Sprintf("/tags/%d", id), nil, nil)
}

// TagTree retrieves the rendered tag tree with note summaries.
func (c *Client) TagTree() ([]TreeTagWithNotes, error) {
	var tree []TreeTagWithNotes
	if err := c.do(http.MethodGet, "/tags/tree", nil, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// TagNote associates a tag with a note. Idempotent.
func (c *Client) TagNote(noteID, tagID int64) error {
	return c.do(http.MethodPost, "/tags/notes", map[string]int64{
		"note_id": noteID,
		"tag_id":  tagID,
	}, nil)
}

// UntagNote removes a note-tag association. Idempotent.
func (c *Client) UntagNote(noteID, tagID int64) error {
	return c.do(http.MethodDelete, fmt.Sprintf("/tags/notes/%d/%d", noteID, tagID), nil, nil)
}

package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"

	"commerce-gateway/internal/crm"
	"commerce-gateway/internal/model"
	"commerce-gateway/internal/proxy"
)

// objectName matches CRM object and field API names, custom ones included.
var objectName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// recordRequest is the body of POST /crm-record and PATCH /crm-record/{id}.
type recordRequest struct {
	Object string                 `json:"object"`
	Fields map[string]interface{} `json:"fields"`
}

func (req *recordRequest) validate() error {
	if !objectName.MatchString(req.Object) {
		return model.NewMalformedRequest("Missing or invalid object")
	}
	if len(req.Fields) == 0 {
		return model.NewMalformedRequest("Missing fields")
	}
	return nil
}

// handleQuery runs a caller-supplied query with the caller's token.
// GET /crm-query?q=
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		h.writeError(w, r, model.NewMalformedRequest("Missing q"))
		return
	}
	token, err := requireCallerToken(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp, err := h.records.Call(r.Context(), token, http.MethodGet, "/query?q="+url.QueryEscape(q), nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeUpstream(w, resp)
}

// handleCreateRecord creates a record of any object.
// POST /crm-record
func (h *Handler) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		h.writeError(w, r, err)
		return
	}
	token, err := requireCallerToken(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp, err := h.records.Call(r.Context(), token, http.MethodPost, crm.ObjectPath(req.Object, ""), req.Fields)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeUpstream(w, resp)
}

// handleGetRecord reads one record.
// GET /crm-record/{id}?object=&fields=
func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	object := r.URL.Query().Get("object")
	if !objectName.MatchString(object) {
		h.writeError(w, r, model.NewMalformedRequest("Missing or invalid object"))
		return
	}
	token, err := requireCallerToken(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	p := crm.ObjectPath(object, r.PathValue("id"))
	if fields := r.URL.Query().Get("fields"); fields != "" {
		p += "?fields=" + url.QueryEscape(fields)
	}

	resp, err := h.records.Call(r.Context(), token, http.MethodGet, p, nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeUpstream(w, resp)
}

// handleUpdateRecord patches one record.
// PATCH /crm-record/{id}
func (h *Handler) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		h.writeError(w, r, err)
		return
	}
	token, err := requireCallerToken(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp, err := h.records.Call(r.Context(), token, http.MethodPatch, crm.ObjectPath(req.Object, r.PathValue("id")), req.Fields)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeUpstream(w, resp)
}

// writeUpstream relays a buffered CRM response with its status.
func (h *Handler) writeUpstream(w http.ResponseWriter, resp *crm.Response) {
	switch {
	case len(resp.Data) > 0:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		w.Write(resp.Data)
	case resp.Raw != "":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(resp.StatusCode)
		w.Write([]byte(resp.Raw))
	default:
		w.WriteHeader(resp.StatusCode)
	}
}

// uploadResponse is returned by POST /upload.
type uploadResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// handleUpload stores the raw request body as a CRM file. The body is
// buffered in full because the upload endpoint needs an exact length.
// POST /upload?filename=&title=
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filename := path.Base(strings.TrimSpace(r.URL.Query().Get("filename")))
	if filename == "" || filename == "." || filename == "/" {
		h.writeError(w, r, model.NewMalformedRequest("Missing filename"))
		return
	}

	limit := h.maxUploadBytes()
	data, err := proxy.ReadAll(http.MaxBytesReader(w, r.Body, limit), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(data) == 0 {
		h.writeError(w, r, model.NewMalformedRequest("Empty upload"))
		return
	}

	token, err := h.writeToken(ctx, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	title := r.URL.Query().Get("title")
	if title == "" {
		title = strings.TrimSuffix(filename, path.Ext(filename))
	}

	id, err := h.records.UploadContent(ctx, token, &crm.File{
		Title:    title,
		PathName: filename,
		Type:     r.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "file uploaded",
		slog.String("content_version_id", id),
		slog.Int("bytes", len(data)),
	)
	h.writeJSON(w, http.StatusCreated, uploadResponse{ID: id, URL: "/file/" + url.PathEscape(id)})
}

// handleFile streams a stored file back with the caller's token.
// GET /file/{id}
func (h *Handler) handleFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token, err := requireCallerToken(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp, err := h.records.StreamContent(ctx, token, r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer resp.Body.Close()

	if err := proxy.Relay(w, resp); err != nil && ctx.Err() == nil {
		h.logger.WarnContext(ctx, "file stream interrupted",
			slog.String("id", r.PathValue("id")),
			slog.String("error", err.Error()),
		)
	}
}

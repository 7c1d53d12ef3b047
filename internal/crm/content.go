package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"commerce-gateway/internal/model"
)

const objectContentVersion = "ContentVersion"

// File is a binary document to store as a ContentVersion.
type File struct {
	Title    string
	PathName string
	Type     string
	Data     []byte
}

// UploadContent stores f and returns the new ContentVersion ID.
// The upload endpoint rejects chunked bodies, so the multipart payload is
// assembled in memory and sent with an exact Content-Length.
func (c *Client) UploadContent(ctx context.Context, token string, f *File) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	meta, err := json.Marshal(map[string]string{
		"Title":        f.Title,
		"PathOnClient": f.PathName,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling content metadata: %w", err)
	}

	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="entity_content"`},
		"Content-Type":        {"application/json"},
	})
	if err != nil {
		return "", err
	}
	if _, err := part.Write(meta); err != nil {
		return "", err
	}

	fileType := f.Type
	if fileType == "" {
		fileType = "application/octet-stream"
	}
	part, err = mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="VersionData"; filename=%q`, f.PathName)},
		"Content-Type":        {fileType},
	})
	if err != nil {
		return "", err
	}
	if _, err := part.Write(f.Data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	resp, err := c.Send(ctx, token, http.MethodPost, ObjectPath(objectContentVersion, ""),
		bytes.NewReader(buf.Bytes()), int64(buf.Len()), mw.FormDataContentType())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	out, err := readResponse(resp)
	if err != nil {
		return "", err
	}
	if out.StatusCode == http.StatusUnauthorized {
		return "", model.NewAuthFailure("CRM rejected token", nil)
	}
	if !out.OK() {
		return "", model.NewWriteError("uploading content failed: "+errorMessage(out), out.Payload())
	}

	var created createResult
	if err := out.Decode(&created); err != nil || created.ID == "" {
		return "", model.NewWriteError("uploading content returned no id", out.Payload())
	}
	return created.ID, nil
}

// StreamContent opens the binary data of a ContentVersion.
// The caller must close the returned response body; non-2xx statuses are
// returned untouched so they can be relayed.
func (c *Client) StreamContent(ctx context.Context, token, id string) (*http.Response, error) {
	return c.Send(ctx, token, http.MethodGet, ObjectPath(objectContentVersion, id)+"/VersionData", nil, -1, "")
}

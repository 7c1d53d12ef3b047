package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"commerce-gateway/internal/model"
)

// QueryResult is one page of a structured query.
type QueryResult[T any] struct {
	TotalSize int  `json:"totalSize"`
	Done      bool `json:"done"`
	Records   []T  `json:"records"`
}

// Query runs soql and decodes the records into T.
func Query[T any](ctx context.Context, c *Client, token, soql string) (*QueryResult[T], error) {
	resp, err := c.Call(ctx, token, http.MethodGet, "/query?q="+url.QueryEscape(soql), nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, readError("query", resp)
	}

	var result QueryResult[T]
	if err := resp.Decode(&result); err != nil {
		return nil, model.NewUpstreamError("CRM", fmt.Errorf("parsing query result: %w", err))
	}
	return &result, nil
}

// Get fetches one record into out. fields limits the returned columns.
func (c *Client) Get(ctx context.Context, token, object, id string, fields []string, out interface{}) error {
	path := ObjectPath(object, id)
	if len(fields) > 0 {
		path += "?fields=" + url.QueryEscape(strings.Join(fields, ","))
	}

	resp, err := c.Call(ctx, token, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		return model.NewNotFoundError(object)
	}
	if !resp.OK() {
		return readError("get "+object, resp)
	}
	if err := resp.Decode(out); err != nil {
		return model.NewUpstreamError("CRM", fmt.Errorf("parsing %s: %w", object, err))
	}
	return nil
}

// createResult is the record API's create response.
type createResult struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Errors  json.RawMessage `json:"errors"`
}

// Create inserts a record and returns its ID.
// A response without an ID is a write error.
func (c *Client) Create(ctx context.Context, token, object string, fields interface{}) (string, error) {
	resp, err := c.Call(ctx, token, http.MethodPost, ObjectPath(object, ""), fields)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		if resp.StatusCode == http.StatusUnauthorized {
			return "", model.NewAuthFailure("CRM rejected token", nil)
		}
		return "", model.NewWriteError(fmt.Sprintf("creating %s failed: %s", object, errorMessage(resp)), resp.Payload())
	}

	var created createResult
	if err := resp.Decode(&created); err != nil || created.ID == "" {
		return "", model.NewWriteError(fmt.Sprintf("creating %s returned no id", object), resp.Payload())
	}
	return created.ID, nil
}

// Update patches a record. The API answers 204 on success.
func (c *Client) Update(ctx context.Context, token, object, id string, fields interface{}) error {
	resp, err := c.Call(ctx, token, http.MethodPatch, ObjectPath(object, id), fields)
	if err != nil {
		return err
	}
	if resp.OK() {
		return nil
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return model.NewAuthFailure("CRM rejected token", nil)
	case http.StatusNotFound:
		return model.NewNotFoundError(object)
	}
	return model.NewWriteError(fmt.Sprintf("updating %s failed: %s", object, errorMessage(resp)), resp.Payload())
}

// ObjectPath is the record API path for an object, optionally with an ID.
func ObjectPath(object, id string) string {
	path := "/sobjects/" + url.PathEscape(object)
	if id != "" {
		path += "/" + url.PathEscape(id)
	}
	return path
}

// apiError is one element of the record API's error array.
type apiError struct {
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
}

// errorMessage extracts a readable message from an error response.
func errorMessage(resp *Response) string {
	var errs []apiError
	if err := json.Unmarshal(resp.Data, &errs); err == nil && len(errs) > 0 && errs[0].Message != "" {
		if errs[0].ErrorCode != "" {
			return errs[0].ErrorCode + ": " + errs[0].Message
		}
		return errs[0].Message
	}
	if resp.Raw != "" {
		return resp.Raw
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}

// readError maps a failed read to a model error.
func readError(op string, resp *Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return model.NewAuthFailure("CRM rejected token", nil)
	case http.StatusNotFound:
		return model.NewNotFoundError("resource")
	}
	apiErr := model.NewUpstreamError("CRM", fmt.Errorf("%s: %s", op, errorMessage(resp)))
	apiErr.Details = resp.Payload()
	return apiErr
}

// Package proxy forwards requests to upstream APIs through the route table.
package proxy

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"commerce-gateway/internal/model"
)

// DefaultMaxBuffered caps the body of a buffered route.
const DefaultMaxBuffered = 50 << 20

// PrepareBody applies the body policy of a route to an outbound request.
//
// Streamed routes pass the body through as-is. Buffered routes read it
// fully, drop Transfer-Encoding and set Content-Length to the byte count,
// since some upload endpoints reject chunked bodies. A buffered request
// can be replayed through GetBody.
func PrepareBody(req *http.Request, buffered bool, maxBytes int64) error {
	if !buffered {
		return nil
	}

	req.Header.Del("Transfer-Encoding")
	req.TransferEncoding = nil

	if req.Body == nil || req.Body == http.NoBody {
		req.Body = http.NoBody
		req.ContentLength = 0
		req.GetBody = func() (io.ReadCloser, error) { return http.NoBody, nil }
		req.Header.Set("Content-Length", "0")
		return nil
	}

	data, err := ReadAll(req.Body, maxBytes)
	req.Body.Close()
	if err != nil {
		return err
	}

	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Length", strconv.Itoa(len(data)))
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return nil
}

// ReadAll reads r fully, failing with a 413 error past maxBytes.
// maxBytes <= 0 means DefaultMaxBuffered.
func ReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBuffered
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, model.NewPayloadTooLarge(maxBytes)
		}
		return nil, model.NewMalformedRequest("reading request body: " + err.Error())
	}
	if int64(len(data)) > maxBytes {
		return nil, model.NewPayloadTooLarge(maxBytes)
	}
	return data, nil
}

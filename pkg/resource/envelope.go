// Package resource defines the action model, wire envelopes, errors and storage
// contracts shared by the resource server and client.
package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Request is the envelope sent for one verb invocation.
// A nil ID means a collection request; an empty Body means no payload.
type Request struct {
	ID   *string         `json:"id,omitempty"`
	Body json.RawMessage `json:"body,omitempty"`
}

// HasBody reports whether the envelope carries a payload.
func (r Request) HasBody() bool { return len(r.Body) > 0 }

// Scope returns the scope a request is routed to.
func (r Request) Scope() Scope {
	if r.ID != nil {
		return ScopeInstance
	}
	return ScopeCollection
}

// UnmarshalJSON accepts string or numeric ids; numbers keep their decimal text.
func (r *Request) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID   json.RawMessage `json:"id"`
		Body json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.ID = nil
	r.Body = wire.Body
	if len(wire.ID) == 0 || bytes.Equal(wire.ID, []byte("null")) {
		return nil
	}
	switch wire.ID[0] {
	case '"':
		var id string
		if err := json.Unmarshal(wire.ID, &id); err != nil {
			return err
		}
		r.ID = &id
	default:
		var n json.Number
		if err := json.Unmarshal(wire.ID, &n); err != nil {
			return fmt.Errorf("id must be a string or number: %w", err)
		}
		id := n.String()
		r.ID = &id
	}
	return nil
}

// NewRequest builds an envelope from an optional id and an optional body.
// A nil body is omitted; a json.RawMessage body is sent as-is.
func NewRequest(id *string, body interface{}) (Request, error) {
	req := Request{ID: id}
	if body == nil {
		return req, nil
	}
	if raw, ok := body.(json.RawMessage); ok {
		req.Body = raw
		return req, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return Request{}, err
	}
	req.Body = data
	return req, nil
}

// DecodeRequest parses a raw request envelope.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, &DecodeError{Err: err}
	}
	return req, nil
}

// Response is the envelope sent back for one invocation.
type Response struct {
	Status  int             `json:"status"`
	Body    json.RawMessage `json:"body,omitempty"`
	Message string          `json:"message,omitempty"`
}

// OK builds a success response around an encoded result.
func OK(body json.RawMessage) Response {
	if len(body) == 0 {
		body = json.RawMessage("null")
	}
	return Response{Status: http.StatusOK, Body: body}
}

// Failure builds a failure response for err.
func Failure(err error) Response {
	status, message := StatusOf(err)
	return Response{Status: status, Message: message}
}

// MarshalJSON encodes exactly one of body or message.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Status >= http.StatusBadRequest {
		return json.Marshal(struct {
			Status  int    `json:"status"`
			Message string `json:"message"`
		}{r.Status, r.Message})
	}
	body := r.Body
	if len(body) == 0 {
		body = json.RawMessage("null")
	}
	return json.Marshal(struct {
		Status int             `json:"status"`
		Body   json.RawMessage `json:"body"`
	}{r.Status, body})
}

// Err returns the failure carried by the response, or nil on success.
func (r Response) Err() error {
	if r.Status >= http.StatusBadRequest {
		return NewError(r.Status, r.Message)
	}
	return nil
}

// EncodeResult marshals a handler result for the success envelope.
func EncodeResult(v interface{}) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		if len(raw) == 0 {
			return json.RawMessage("null"), nil
		}
		return raw, nil
	}
	return json.Marshal(v)
}

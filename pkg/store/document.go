// Package store provides storage adapters for resource instances.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Document is a stored resource instance: an opaque JSON body plus bookkeeping.
type Document struct {
	ID       string          `json:"id"`
	Body     json.RawMessage `json:"body"`
	Revision int             `json:"revision"`
	Created  time.Time       `json:"created"`
	Modified time.Time       `json:"modified"`
}

// DocumentJSON returns the body of a *Document, the plain representation used by
// auto-loading in json mode.
func DocumentJSON(_ context.Context, instance interface{}) (interface{}, error) {
	doc, ok := instance.(*Document)
	if !ok {
		return nil, fmt.Errorf("store:document - cannot serialize %T", instance)
	}
	if len(doc.Body) == 0 {
		return json.RawMessage("null"), nil
	}
	return doc.Body, nil
}

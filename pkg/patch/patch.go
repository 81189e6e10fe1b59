// Package patch applies RFC 6902 JSON Patch documents to resource representations.
package patch

import (
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/morezero/resource-bus/pkg/resource"
)

// Applier applies a patch document to a JSON document and returns the result.
type Applier interface {
	Apply(doc, ops json.RawMessage) (json.RawMessage, error)
}

// JSONPatch is an Applier for RFC 6902 operation lists.
type JSONPatch struct {
	// AllowMissingPathOnRemove makes removes of absent paths succeed.
	AllowMissingPathOnRemove bool
}

// Apply decodes ops and applies them to doc. A malformed patch or a failing
// operation is reported as a 400 error.
func (p JSONPatch) Apply(doc, ops json.RawMessage) (json.RawMessage, error) {
	decoded, err := jsonpatch.DecodePatch(ops)
	if err != nil {
		return nil, resource.BadRequest("invalid JSON patch document").WithCause(err)
	}
	opts := jsonpatch.NewApplyOptions()
	opts.AllowMissingPathOnRemove = p.AllowMissingPathOnRemove
	out, err := decoded.ApplyWithOptions(doc, opts)
	if err != nil {
		return nil, resource.BadRequest("JSON patch could not be applied").WithCause(err)
	}
	return out, nil
}

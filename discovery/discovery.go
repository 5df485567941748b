// Package discovery publishes the static catalogue of payable resources for
// machine clients. The catalogue is a pure function of startup configuration
// and carries no per-request state.
package discovery

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/lumex-labs/paygate/types"
)

// Document is the versioned discovery payload.
type Document struct {
	Version int                    `json:"x402Version"`
	Items   []types.CatalogueEntry `json:"items"`
}

// Publisher serves the catalogue. The JSON body is marshaled once at
// construction, which is what makes repeated reads byte-identical.
type Publisher struct {
	doc Document
	raw []byte
}

// NewPublisher validates the entries and freezes the document.
func NewPublisher(entries []types.CatalogueEntry) (*Publisher, error) {
	items := make([]types.CatalogueEntry, len(entries))
	copy(items, entries)

	for i := range items {
		if err := items[i].Validate(); err != nil {
			return nil, types.WrapPaymentError(types.ErrConfig, "invalid discovery catalogue", err)
		}
	}

	doc := Document{Version: types.ProtocolVersion, Items: items}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, types.WrapPaymentError(types.ErrConfig, "failed to encode discovery catalogue", err)
	}
	return &Publisher{doc: doc, raw: raw}, nil
}

// Catalogue returns a copy of the published entries.
func (p *Publisher) Catalogue() []types.CatalogueEntry {
	out := make([]types.CatalogueEntry, len(p.doc.Items))
	copy(out, p.doc.Items)
	return out
}

// Entry returns the catalogue entry for a resource identifier.
func (p *Publisher) Entry(resource string) (types.CatalogueEntry, error) {
	for _, e := range p.doc.Items {
		if e.Resource == resource {
			return e, nil
		}
	}
	return types.CatalogueEntry{}, fmt.Errorf("discovery: no catalogue entry for resource %q", resource)
}

// Handler serves the discovery document. It requires no authentication and
// allows cross-origin reads; the content is cache-friendly.
func (p *Publisher) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
			return
		case http.MethodGet:
		default:
			w.Header().Set("Allow", "GET, OPTIONS")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.Header().Set("Content-Length", strconv.Itoa(len(p.raw)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(p.raw)
	})
}

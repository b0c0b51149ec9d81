package entity

// NamedEntity is a real-world object (product, store, reservation) surfaced
// while handling a request. Name is the merge key.
type NamedEntity struct {
	Name     string         `json:"name"`
	Types    []string       `json:"type"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

const (
	EntityTypeProduct = "product"
	EntityTypeStore   = "store"
	EntityTypeCart    = "shoppingCart"
)

func (e NamedEntity) Clone() NamedEntity {
	out := NamedEntity{Name: e.Name}
	if e.Types != nil {
		out.Types = append([]string(nil), e.Types...)
	}
	if e.Metadata != nil {
		out.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

func (e NamedEntity) HasType(t string) bool {
	for _, existing := range e.Types {
		if existing == t {
			return true
		}
	}
	return false
}

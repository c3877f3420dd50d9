package doc

import "github.com/drawkit/sai/pkg/chunk"

// LayerRef is one row of the layer order table.
type LayerRef struct {
	ID   uint32
	Kind LayerKind
}

// LayerTable is the "laytbl" (or "subtbl") stream: layer ids in paint order,
// lowest first.
type LayerTable struct {
	refs  []LayerRef
	ranks map[uint32]int
}

// DecodeLayerTable parses the table: a count word, then one fixed row per
// layer (id, kind, and a word the editor uses internally).
func DecodeLayerTable(cr *chunk.Reader) (*LayerTable, error) {
	count, err := cr.Uint32()
	if err != nil {
		return nil, err
	}

	// The count is attacker controlled; cap the allocation hint and let the
	// row reads fail on truncation.
	t := &LayerTable{ranks: make(map[uint32]int, min(count, 4096))}
	for i := uint32(0); i < count; i++ {
		id, err := cr.Uint32()
		if err != nil {
			return nil, err
		}
		kindWord, err := cr.Uint16()
		if err != nil {
			return nil, err
		}
		kind, err := parseLayerKind(uint32(kindWord))
		if err != nil {
			return nil, err
		}
		if _, err := cr.Uint16(); err != nil { // editor-internal value
			return nil, err
		}
		t.ranks[id] = len(t.refs)
		t.refs = append(t.refs, LayerRef{ID: id, Kind: kind})
	}
	return t, nil
}

// Len returns the number of layers in the table.
func (t *LayerTable) Len() int { return len(t.refs) }

// Refs returns the table rows in paint order.
func (t *LayerTable) Refs() []LayerRef { return t.refs }

// RankOf returns a layer's paint order, 0 being the lowest layer.
func (t *LayerTable) RankOf(id uint32) (int, bool) {
	rank, ok := t.ranks[id]
	return rank, ok
}

// Sort orders layers by their table rank, lowest first. Layers missing from
// the table keep their relative order after the ranked ones.
func (t *LayerTable) Sort(layers []*Layer) {
	ranked := make([]*Layer, 0, len(layers))
	var unranked []*Layer
	for _, l := range layers {
		if _, ok := t.ranks[l.ID]; ok {
			ranked = append(ranked, l)
		} else {
			unranked = append(unranked, l)
		}
	}
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && t.ranks[ranked[j-1].ID] > t.ranks[ranked[j].ID]; j-- {
			ranked[j-1], ranked[j] = ranked[j], ranked[j-1]
		}
	}
	copy(layers, append(ranked, unranked...))
}

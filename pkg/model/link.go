package model

// LinkKey identifies an unordered node pair. A is always the lexically smaller id.
type LinkKey struct {
	A string
	B string
}

// NewLinkKey normalises the pair (a, b).
func NewLinkKey(a, b string) LinkKey {
	if b < a {
		a, b = b, a
	}
	return LinkKey{A: a, B: b}
}

// String renders the key as "a--b".
func (k LinkKey) String() string {
	return k.A + "--" + k.B
}

// Other returns the endpoint opposite to id.
func (k LinkKey) Other(id string) string {
	if k.A == id {
		return k.B
	}
	return k.A
}

// Connection is one raw relation collapsed onto a Link.
type Connection struct {
	Label   string  `json:"label"`
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
	Count   int     `json:"count"`
}

// sameRelation reports whether two connections describe the same relation.
func (c Connection) sameRelation(o Connection) bool {
	return c.Label == o.Label && c.Feature == o.Feature
}

// Link aggregates every raw relation between two nodes.
//
// Visible is derived by the store as
// !Hidden && source.Visible && target.Visible && links globally shown.
type Link struct {
	Source      string
	Target      string
	Connections []Connection
	Component   int

	Hidden  bool
	Visible bool

	Color string
}

// Key returns the normalised pair of the link.
func (l *Link) Key() LinkKey {
	return NewLinkKey(l.Source, l.Target)
}

// Touches reports whether id is one of the link's endpoints.
func (l *Link) Touches(id string) bool {
	return l.Source == id || l.Target == id
}

// AddConnections appends relations not already present (same label and
// feature) and reports how many were added.
func (l *Link) AddConnections(conns []Connection) int {
	added := 0
	for _, c := range conns {
		dup := false
		for _, have := range l.Connections {
			if have.sameRelation(c) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		l.Connections = append(l.Connections, c)
		added++
	}
	return added
}

// TotalWeight sums the weight of every connection. Connections without a
// weight count as their Count, or 1.
func (l *Link) TotalWeight() float64 {
	var w float64
	for _, c := range l.Connections {
		switch {
		case c.Weight != 0:
			w += c.Weight
		case c.Count != 0:
			w += float64(c.Count)
		default:
			w++
		}
	}
	return w
}

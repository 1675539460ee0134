package model

// Component is a connected subgraph of a view. IDs are positive; zero on a
// record means "not assigned".
type Component struct {
	ID                 int
	NodeCount          int
	LargestNodes       []string  // top-k member ids by degree
	LargestConnections []LinkKey // top-k member links by total weight
	Visible            bool
}

// NewComponent returns a visible, empty component.
func NewComponent(id int) *Component {
	return &Component{ID: id, Visible: true}
}

// Meta carries view-wide derived and originating information.
type Meta struct {
	MaxDegree        int      `json:"max_degree"`
	AnchorProperties []string `json:"anchor_properties,omitempty"`
	Query            string   `json:"query,omitempty"`
}

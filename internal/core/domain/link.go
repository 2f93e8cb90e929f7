package domain

type LinkDirection string

const (
	DirectionOutgoing LinkDirection = "outgoing"
	DirectionIncoming LinkDirection = "incoming"
)

// Link is a directed, typed edge. A link from A to B never implies B to A.
type Link struct {
	FromID   string `json:"from_id"`
	ToID     string `json:"to_id"`
	LinkType string `json:"link_type"`
}

// LinkedPeer is the document on the other end of an edge, seen from one side.
type LinkedPeer struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	LinkType  string        `json:"link_type"`
	Direction LinkDirection `json:"direction"`
}

type Relationships struct {
	DocumentID string       `json:"document_id"`
	Incoming   []LinkedPeer `json:"incoming"`
	Outgoing   []LinkedPeer `json:"outgoing"`
	Linked     []LinkedPeer `json:"linked"`
	Versions   []Document   `json:"versions"`
}

// HasOutgoing reports whether the exact edge documentID -> toID of linkType exists.
func (r Relationships) HasOutgoing(toID, linkType string) bool {
	for _, peer := range r.Outgoing {
		if peer.ID == toID && peer.LinkType == linkType {
			return true
		}
	}
	return false
}

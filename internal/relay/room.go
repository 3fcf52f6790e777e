package relay

// Capacity is the number of peers a room holds.
const Capacity = 2

// Room pairs at most two clients.
type Room struct {
	ID    string
	Peers []*Client
}

func (r *Room) full() bool {
	return len(r.Peers) >= Capacity
}

func (r *Room) add(c *Client) {
	r.Peers = append(r.Peers, c)
}

// remove drops c and reports whether it was a member.
func (r *Room) remove(c *Client) bool {
	for i, p := range r.Peers {
		if p == c {
			r.Peers = append(r.Peers[:i], r.Peers[i+1:]...)
			return true
		}
	}
	return false
}

// other returns the peer of c, or nil while c is alone.
func (r *Room) other(c *Client) *Client {
	for _, p := range r.Peers {
		if p != c {
			return p
		}
	}
	return nil
}

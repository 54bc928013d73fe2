package game

// Location is a place the player can occupy. Template locations ship with
// the content tables; custom locations are generated during play.
type Location struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// Tags feed the insight classifier and the narrator ("forest", "dungeon",
	// "water", "town", …).
	Tags []string `json:"tags,omitempty"`

	// Connections lists location ids reachable from here.
	Connections []string `json:"connections,omitempty"`

	// DangerLevel suggests the level of encounters here.
	DangerLevel int `json:"danger_level,omitempty"`

	// Custom marks player-discovered (generated) locations.
	Custom bool `json:"custom,omitempty"`
}

// HasTag reports whether the location carries the given tag.
func (l Location) HasTag(tag string) bool {
	for _, t := range l.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Connect returns l with a connection to the target id added, if absent.
func (l Location) Connect(targetID string) Location {
	for _, c := range l.Connections {
		if c == targetID {
			return l
		}
	}
	conns := make([]string, len(l.Connections), len(l.Connections)+1)
	copy(conns, l.Connections)
	l.Connections = append(conns, targetID)
	return l
}

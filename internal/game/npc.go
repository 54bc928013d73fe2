package game

import (
	"fmt"
	"time"
)

// Affinity bounds for NPC relationships.
const (
	MinAffinity = -100
	MaxAffinity = 100
)

// DialogueLine is one entry of an NPC's conversation history. History is
// append-only and ordered by occurrence.
type DialogueLine struct {
	Speaker   string    `json:"speaker"` // "player" or the NPC's name
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ShopItem is one line of a shop's stock.
type ShopItem struct {
	Item        Item `json:"item"`
	Stock       int  `json:"stock"`
	Price       int  `json:"price"`
	MinLevel    int  `json:"min_level,omitempty"`
	MinAffinity int  `json:"min_affinity,omitempty"`
}

// Shop is an NPC's trading inventory. BuybackPercent is the fraction of an
// item's value paid when the player sells (e.g. 50 means half value).
type Shop struct {
	Name           string     `json:"name"`
	Stock          []ShopItem `json:"stock"`
	BuybackPercent int        `json:"buyback_percent"`
}

// NPC is a non-player character bound to a location.
type NPC struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Archetype   string `json:"archetype"`
	LocationID  string `json:"location_id"`
	Personality string `json:"personality,omitempty"`

	Conversation []DialogueLine `json:"conversation,omitempty"`

	// Affinity maps gameId to this NPC's disposition toward that game's
	// player, in [MinAffinity, MaxAffinity].
	Affinity map[string]int `json:"affinity,omitempty"`

	Shop *Shop `json:"shop,omitempty"`

	// OfferableQuests lists quest ids this NPC can hand out.
	OfferableQuests []string `json:"offerable_quests,omitempty"`

	Lore            string `json:"lore,omitempty"`
	GreetingContext string `json:"greeting_context,omitempty"`
}

// AppendDialogue returns n with the line appended to its history.
func (n NPC) AppendDialogue(speaker, text string, at time.Time) NPC {
	history := make([]DialogueLine, len(n.Conversation), len(n.Conversation)+1)
	copy(history, n.Conversation)
	n.Conversation = append(history, DialogueLine{Speaker: speaker, Text: text, Timestamp: at})
	return n
}

// UpdateRelationship shifts the NPC's affinity for gameID by delta, clamped
// to [MinAffinity, MaxAffinity].
func (n NPC) UpdateRelationship(gameID string, delta int) NPC {
	aff := make(map[string]int, len(n.Affinity)+1)
	for k, v := range n.Affinity {
		aff[k] = v
	}
	v := aff[gameID] + delta
	if v > MaxAffinity {
		v = MaxAffinity
	}
	if v < MinAffinity {
		v = MinAffinity
	}
	aff[gameID] = v
	n.Affinity = aff
	return n
}

// AffinityFor returns the NPC's affinity toward the given game's player.
func (n NPC) AffinityFor(gameID string) int {
	return n.Affinity[gameID]
}

// Purchase removes qty of the identified shop item and returns the updated
// NPC, the bought item (with Quantity=qty) and the total price. Level and
// affinity gates are checked against the buyer.
func (n NPC) Purchase(gameID, itemID string, qty, buyerLevel int) (NPC, Item, int, error) {
	if n.Shop == nil {
		return n, Item{}, 0, fmt.Errorf("game: npc %q has no shop", n.Name)
	}
	if qty < 1 {
		return n, Item{}, 0, fmt.Errorf("game: purchase quantity must be >= 1")
	}
	for i, line := range n.Shop.Stock {
		if line.Item.ID != itemID {
			continue
		}
		if line.Stock < qty {
			return n, Item{}, 0, fmt.Errorf("game: %q out of stock (%d left)", line.Item.Name, line.Stock)
		}
		if buyerLevel < line.MinLevel {
			return n, Item{}, 0, fmt.Errorf("game: %q requires level %d", line.Item.Name, line.MinLevel)
		}
		if n.AffinityFor(gameID) < line.MinAffinity {
			return n, Item{}, 0, fmt.Errorf("game: %s does not trust you enough for %q", n.Name, line.Item.Name)
		}

		shop := *n.Shop
		shop.Stock = make([]ShopItem, len(n.Shop.Stock))
		copy(shop.Stock, n.Shop.Stock)
		shop.Stock[i].Stock -= qty
		n.Shop = &shop

		bought := line.Item
		bought.Quantity = qty
		return n, bought, line.Price * qty, nil
	}
	return n, Item{}, 0, fmt.Errorf("game: shop does not sell %q", itemID)
}

// Sell returns the gold paid for qty of the player's item at the shop's
// buyback percentage of item value.
func (n NPC) Sell(item Item, qty int) (int, error) {
	if n.Shop == nil {
		return 0, fmt.Errorf("game: npc %q has no shop", n.Name)
	}
	if qty < 1 {
		return 0, fmt.Errorf("game: sell quantity must be >= 1")
	}
	pct := n.Shop.BuybackPercent
	if pct <= 0 {
		pct = 50
	}
	return item.Value * qty * pct / 100, nil
}

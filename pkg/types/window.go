package types

import "time"

// Side identifies one of the two outcome instruments of an Up/Down window.
type Side string

const (
	SideUp   Side = "UP"
	SideDown Side = "DOWN"
	SideNone Side = ""
)

// Opposite returns the other side of the market.
func (s Side) Opposite() Side {
	switch s {
	case SideUp:
		return SideDown
	case SideDown:
		return SideUp
	default:
		return SideNone
	}
}

// Market is the resolved identity of one window's tradable instruments:
// a condition id plus exactly two outcome tokens, one per side.
type Market struct {
	Slug        string
	ConditionID string
	UpTokenID   string
	DownTokenID string
	EndDate     time.Time
}

// SideOf matches a token id against the market's two known tokens.
// Returns SideNone for an unknown token id.
func (m *Market) SideOf(tokenID string) Side {
	switch tokenID {
	case m.UpTokenID:
		return SideUp
	case m.DownTokenID:
		return SideDown
	default:
		return SideNone
	}
}

// TokenOf returns the token id for a side, or "" for SideNone.
func (m *Market) TokenOf(side Side) string {
	switch side {
	case SideUp:
		return m.UpTokenID
	case SideDown:
		return m.DownTokenID
	default:
		return ""
	}
}

// PriceTick is a single price observation for one outcome token.
type PriceTick struct {
	TokenID   string
	Price     float64
	Timestamp time.Time
}

package model

import "time"

// Cost field limits.
const (
	MaxDescriptionLength = 200
	MaxUserNameLength    = 150
	MaxPasswordLength    = 150
)

// Cost is a single expense recorded by a user.
type Cost struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CostUpdate carries the fields of a partial update. Nil means unchanged.
type CostUpdate struct {
	Description *string
	Amount      *float64
}

// IsEmpty reports whether the update changes nothing.
func (u CostUpdate) IsEmpty() bool {
	return u.Description == nil && u.Amount == nil
}

// Apply returns a copy of c with the update applied.
func (u CostUpdate) Apply(c Cost) Cost {
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.Amount != nil {
		c.Amount = *u.Amount
	}
	return c
}

// CostResponse is the API representation of a cost.
type CostResponse struct {
	ID          int64   `json:"id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// ToResponse converts a Cost to its API representation.
func (c *Cost) ToResponse() CostResponse {
	return CostResponse{ID: c.ID, Description: c.Description, Amount: c.Amount}
}

// CostSummary aggregates a user's costs. Money values are decimal strings
// rounded to two places.
type CostSummary struct {
	Count   int    `json:"count"`
	Total   string `json:"total"`
	Average string `json:"average"`
}

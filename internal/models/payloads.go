package models

import "time"

// Typed payloads for the synchronized domain types. These are what the
// presentation layer reads and writes; the sync engine only ever sees
// their JSON form inside the Entity envelope.

// ShoppingList groups shopping items.
type ShoppingList struct {
	Name  string `json:"name"`
	Store string `json:"store,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// ShoppingItem is one line of a shopping list.
type ShoppingItem struct {
	Name      string  `json:"name"`
	Unit      string  `json:"unit,omitempty"`
	Quantity  float64 `json:"quantity,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Purchased bool    `json:"purchased"`
}

// Goal is a savings or household goal with a target amount.
type Goal struct {
	DueDate       *time.Time `json:"due_date,omitempty"`
	Title         string     `json:"title"`
	Notes         string     `json:"notes,omitempty"`
	TargetAmount  float64    `json:"target_amount,omitempty"`
	CurrentAmount float64    `json:"current_amount,omitempty"`
}

// GoalTask is a checklist step belonging to a goal.
type GoalTask struct {
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// Asset is a tracked household asset.
type Asset struct {
	PurchasedAt *time.Time `json:"purchased_at,omitempty"`
	Name        string     `json:"name"`
	Category    string     `json:"category,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Value       float64    `json:"value,omitempty"`
}

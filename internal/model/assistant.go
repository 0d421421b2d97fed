package model

import "time"

type Assistant struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"display_name"`
	Code        string    `json:"code"`
	Active      bool      `json:"active"`
	Notes       *string   `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}

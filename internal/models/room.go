package models

import "time"

// Room represents a bookable room. Programs holds the academic programs the
// room is earmarked for (room_programs rows).
type Room struct {
	ID         string    `db:"id" json:"id"`
	RoomNumber string    `db:"room_number" json:"room_number"`
	RoomType   string    `db:"room_type" json:"room_type"`
	Image      *string   `db:"image" json:"image,omitempty"`
	Programs   []string  `db:"-" json:"programs"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// RoomFilter describes query params for listing rooms.
type RoomFilter struct {
	RoomType string
	Program  string
	Page     int
	PageSize int
}

package models

import (
	"time"
)

type User struct {
	ID           uint     `gorm:"primaryKey;autoIncrement"  json:"id"`
	Username     string   `gorm:"uniqueIndex;not null"      json:"username"`
	PasswordHash string   `gorm:"not null"                  json:"-"`
	Roles        []string `gorm:"serializer:json;not null"  json:"roles"`
	Active       bool     `gorm:"not null;default:true"     json:"active"`
}

type Note struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"  json:"id"`
	UserID    uint      `gorm:"index;not null"            json:"user"`
	Title     string    `gorm:"uniqueIndex;not null"      json:"title"`
	Text      string    `gorm:"not null"                  json:"text"`
	Completed bool      `gorm:"not null;default:false"    json:"completed"`
	Ticket    uint      `gorm:"uniqueIndex;not null"      json:"ticket"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TicketCounter backs the note display sequence. A single row named
// "ticketNums" is seeded at migration time and incremented inside the
// note-create transaction, so tickets are monotonic and never reused.
type TicketCounter struct {
	Name  string `gorm:"primaryKey"  json:"name"`
	Value uint   `gorm:"not null"    json:"value"`
}

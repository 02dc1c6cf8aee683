package domain

import "time"

// BlogPost is a specialist-authored article addressed by its slug.
type BlogPost struct {
	ID           string    `json:"id" bson:"_id"`
	SpecialistID string    `json:"specialist_id" bson:"specialist_id"`
	Title        string    `json:"title" bson:"title"`
	Slug         string    `json:"slug" bson:"slug"`
	Content      string    `json:"content" bson:"content"`
	Published    bool      `json:"published" bson:"published"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

package domain

import "time"

// ExperiencePost is an anonymously authored narrative. UserID is kept for
// ownership checks only and is never serialized.
type ExperiencePost struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Title     string    `bson:"title"`
	Content   string    `bson:"content"`
	Published bool      `bson:"published"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// ExperiencePostResponse is a specialist's public reply to an ExperiencePost.
type ExperiencePostResponse struct {
	ID               string    `bson:"_id"`
	ExperiencePostID string    `bson:"experience_post_id"`
	SpecialistID     string    `bson:"specialist_id"`
	Content          string    `bson:"content"`
	CreatedAt        time.Time `bson:"created_at"`
}

package models

import "time"

// Generation is one entry of a photo's caption history.
type Generation struct {
	PhotoID     int64     `bson:"photo_id"`
	Description string    `bson:"description"`
	Source      string    `bson:"source"`
	CreatedAt   time.Time `bson:"created_at"`
}

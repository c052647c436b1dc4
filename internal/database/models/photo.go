package models

import "time"

// Photo is a stored photograph waiting for (or done with) channel publication.
// PostedAt is set exactly when Posted flips to true and cleared on reset.
// Description holds the last caption generated on demand, without the footer.
type Photo struct {
	ID            int64      `bson:"_id"`
	ExternalID    string     `bson:"external_id"`
	Location      string     `bson:"location"`
	Posted        bool       `bson:"posted"`
	CreatedAt     time.Time  `bson:"created_at"`
	PostedAt      *time.Time `bson:"posted_at,omitempty"`
	Description   string     `bson:"description,omitempty"`
	CaptionSource string     `bson:"caption_source,omitempty"`
}

// PhotoStats summarizes the rotation pool.
type PhotoStats struct {
	Total   int64
	Posted  int64
	Pending int64
}

// NewPhotoStats derives Pending from the total and posted counts.
func NewPhotoStats(total, posted int64) PhotoStats {
	return PhotoStats{Total: total, Posted: posted, Pending: total - posted}
}

package models

import "time"

// Publication triggers.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// PostLog stores information about a photo published to the channel.
type PostLog struct {
	PhotoID       int64     `bson:"photo_id"`
	Caption       string    `bson:"caption"`
	CaptionSource string    `bson:"caption_source"` // model identifier or "fallback"
	Trigger       string    `bson:"trigger"`
	ChannelID     string    `bson:"channel_id"`
	ChannelPostID int       `bson:"channel_post_id"`
	PublishedAt   time.Time `bson:"published_at"`
}

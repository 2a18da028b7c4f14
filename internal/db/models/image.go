package models

import "time"

// Image is an uploaded picture and its generated thumbnail
type Image struct {
	ID            string    `db:"id" json:"id"`
	CommunityID   *string   `db:"community_id" json:"community_id,omitempty"`
	UploadedBy    string    `db:"uploaded_by" json:"uploaded_by"`
	Path          string    `db:"path" json:"-"`
	ThumbnailPath string    `db:"thumbnail_path" json:"-"`
	ContentType   string    `db:"content_type" json:"content_type"`
	Size          int64     `db:"size" json:"size"`
	Checksum      string    `db:"checksum" json:"checksum"`
	Width         int       `db:"width" json:"width"`
	Height        int       `db:"height" json:"height"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

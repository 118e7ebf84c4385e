package models

import "time"

// Video is the metadata row of one ingested video. S3Key may reference an object
// that was never written when the deployment has no object store.
type Video struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	S3Key      string    `json:"s3_key"`
	Size       int64     `json:"size"`
	UploadDate time.Time `json:"upload_date"`
}

// Stats aggregates all video rows. TotalSize and AvgSize are nil when no rows exist.
type Stats struct {
	TotalVideos int64    `json:"total_videos"`
	TotalSize   *int64   `json:"total_size"`
	AvgSize     *float64 `json:"avg_size"`
}

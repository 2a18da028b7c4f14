package models

import "time"

// Metric names accepted by time-series analytics
const (
	MetricPosts    = "posts"
	MetricMembers  = "members"
	MetricMessages = "messages"
)

// SeriesPoint is one bucket of a time series
type SeriesPoint struct {
	Bucket time.Time `db:"bucket" json:"bucket"`
	Count  int64     `db:"count" json:"count"`
}

// HeatCell counts activity at one weekday (0 = Sunday) and hour (0-23)
type HeatCell struct {
	Weekday int   `db:"weekday" json:"weekday"`
	Hour    int   `db:"hour" json:"hour"`
	Count   int64 `db:"count" json:"count"`
}

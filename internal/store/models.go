package store

// Sample is one persisted per-process, per-tick byte-delta record. Deltas are
// non-negative by construction: the attributor clamps counter resets to zero
// before a Sample is ever created. Rows are immutable once written and are
// deleted only by retention enforcement.
type Sample struct {
	ID          uint   `gorm:"primaryKey"`
	Timestamp   int64  `gorm:"not null;index:idx_samples_timestamp"`
	PID         int32  `gorm:"column:pid;not null;index:idx_samples_pid"`
	ProcessName string `gorm:"not null"`
	// AppName is the resolved human-readable application name; nil when
	// resolution failed, in which case ProcessName is the fallback identity.
	AppName   *string
	BytesSent uint64 `gorm:"not null"`
	BytesRecv uint64 `gorm:"not null"`
}

// TableName fixes the table name independent of GORM pluralization rules.
func (Sample) TableName() string { return "samples" }

// DailySummary is one persisted per-app, per-date aggregate of Samples.
// Unique on (date, app_name); always recomputed from source rows, never
// incremented, so a rollup is idempotent. Summaries outlive the sample
// retention horizon: they are the long-term compacted record.
type DailySummary struct {
	ID          uint   `gorm:"primaryKey"`
	Date        string `gorm:"not null;uniqueIndex:ux_daily_date_app"`
	AppName     string `gorm:"not null;uniqueIndex:ux_daily_date_app"`
	BytesSent   uint64 `gorm:"not null"`
	BytesRecv   uint64 `gorm:"not null"`
	SampleCount int64  `gorm:"not null"`
}

// TableName fixes the table name independent of GORM pluralization rules.
func (DailySummary) TableName() string { return "daily_summaries" }

// TotalBytes returns the summary's combined sent and received volume.
func (d DailySummary) TotalBytes() uint64 { return d.BytesSent + d.BytesRecv }

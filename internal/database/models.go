package database

import "time"

// Trigger is the reason a recording was started.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerDetection Trigger = "detection"
	TriggerMotion    Trigger = "motion"
	TriggerManual    Trigger = "manual"
)

// RetentionTier is a per-recording multiplier class.
type RetentionTier string

const (
	TierCritical  RetentionTier = "critical"
	TierImportant RetentionTier = "important"
	TierStandard  RetentionTier = "standard"
	TierEphemeral RetentionTier = "ephemeral"
)

// Recording is a durable row describing one recorded file.
type Recording struct {
	ID                    int64
	StreamName            string
	FilePath              string
	StartTime             time.Time
	EndTime               time.Time
	SizeBytes             int64
	Width, Height         int
	FPS                   float64
	Codec                 string
	Trigger               Trigger
	IsComplete            bool
	Protected             bool
	RetentionOverrideDays int // -1 = inherit
	RetentionTier         RetentionTier
	DiskPressureEligible  bool
}

// ObjectFilterMode is a stream's detection-object gate mode.
type ObjectFilterMode string

const (
	ObjectFilterNone    ObjectFilterMode = "none"
	ObjectFilterInclude ObjectFilterMode = "include"
	ObjectFilterExclude ObjectFilterMode = "exclude"
)

// StreamConfig is persistent per-stream configuration.
type StreamConfig struct {
	ID                      int64
	Name                    string
	SourceURL               string
	Width, Height           int
	FPS                     float64
	Codec                   string
	Priority                int
	RetentionDays           int
	DetectionRetentionDays  int
	MaxBytes                int64
	ObjectFilterMode        ObjectFilterMode
	ObjectFilterList        string
	TierMultiplierCritical  float64
	TierMultiplierImportant float64
	TierMultiplierEphemeral float64
	StoragePriority         int
	StreamingEnabled        bool
	DetectionBasedRecording bool
}

// DetectionZone is a polygon gate for one stream.
type DetectionZone struct {
	ID             int64
	StreamName     string
	Enabled        bool
	MinConfidence  float64
	ClassAllowlist string // comma-separated, empty = allow all
	Vertices       []Point
}

// Point is a normalized [0,1]^2 coordinate.
type Point struct {
	X, Y float64
}

// Detection is one time-series inference result.
type Detection struct {
	ID         int64
	StreamName string
	ObservedAt time.Time
	Label      string
	Confidence float64
	X, Y, W, H float64
}

// Event is one audit-log row.
type Event struct {
	ID         int64
	OccurredAt time.Time
	StreamName string
	Kind       string
	Message    string
}

// MotionConfig is per-stream motion-detection tuning.
type MotionConfig struct {
	StreamName      string
	Enabled         bool
	Sensitivity     float64
	CooldownSeconds int
}

// MotionRecording links a recording row to the motion event that triggered it.
type MotionRecording struct {
	ID          int64
	RecordingID int64
	TriggeredAt time.Time
	Score       float64
}

// Role is an auth user's permission class.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleUser   Role = "user"
	RoleViewer Role = "viewer"
	RoleAPI    Role = "api"
)

// PaginationParams narrows a Recording listing.
type PaginationParams struct {
	Stream  string
	Trigger Trigger
	Label   string
	Sort    string
	Order   string // "asc" | "desc"
	Limit   int
	Offset  int
}

// TimeRange bounds a query by start_time.
type TimeRange struct {
	Start, End time.Time
}

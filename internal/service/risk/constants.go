package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rule thresholds
var (
	// HighValueThreshold flags amounts strictly above it
	HighValueThreshold = decimal.NewFromInt(10000)

	// StructuringLowerBound is the inclusive lower edge of the structuring band
	StructuringLowerBound = decimal.NewFromInt(9000)

	// StructuringUpperBound is the exclusive upper edge of the structuring band
	StructuringUpperBound = decimal.NewFromInt(10000)

	// LargeAmountThreshold and VeryLargeAmountThreshold drive additive score adjustments
	LargeAmountThreshold     = decimal.NewFromInt(50000)
	VeryLargeAmountThreshold = decimal.NewFromInt(100000)

	// SmallAmountThreshold only affects attribution
	SmallAmountThreshold = decimal.NewFromInt(100)
)

const (
	// GeoVelocityThreshold is the travel speed in km/h above which travel is impossible
	GeoVelocityThreshold = 500.0

	// MaxFailedAttempts is the number of failed attempts tolerated before flagging
	MaxFailedAttempts = 5

	// StructuringMinSimilar is the number of recent in-band transactions that
	// makes the current one part of a structuring pattern
	StructuringMinSimilar = 3

	// DefaultStructuringWindow is how far back similar transactions are counted
	DefaultStructuringWindow = 24 * time.Hour

	// DefaultLookupTimeout bounds a single historical lookup
	DefaultLookupTimeout = 2 * time.Second
)

// Score floors raised by each triggered rule
const (
	BaseScore             = 0.1
	FloorHighValue        = 0.7
	FloorStructuring      = 0.9
	FloorGeoVelocity      = 0.95
	FloorIPMismatch       = 0.6
	FloorMultipleFailures = 0.75
)

// Additive score adjustments
const (
	AdjustLargeAmount      = 0.15
	AdjustVeryLargeAmount  = 0.2
	AdjustHighVelocity     = 0.2
	AdjustVeryHighVelocity = 0.3
	AdjustOffHours         = 0.1
	AdjustPerFailedAttempt = 0.05
	AdjustPhoneUnverified  = 0.1
	AdjustNoSocialPresence = 0.05
)

// Feature bounds used by adjustments and attribution
const (
	HighVelocityCount     = 10
	VeryHighVelocityCount = 20
	OffHoursStart         = 6
	OffHoursEnd           = 22
)

// Confidence is 0.7 + 0.25*score, capped
const (
	ConfidenceBase  = 0.7
	ConfidenceSlope = 0.25
	ConfidenceCap   = 0.95
)

// Alert priority thresholds
const (
	// AlertHighScore makes an alert HIGH priority when exceeded
	AlertHighScore = 0.9

	// AlertMediumScore makes an alert MEDIUM priority when exceeded
	AlertMediumScore = 0.7
)

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateChange is returned when a Change already exists for the
// "after" snapshot of a pair.
var ErrDuplicateChange = errors.New("change already exists for snapshot")

// AssetType identifies what kind of resource an Asset is. It selects the
// structured comparator used by the diff engine.
type AssetType string

const (
	AssetPricing    AssetType = "pricing"
	AssetFeatures   AssetType = "features"
	AssetChangelog  AssetType = "changelog"
	AssetSitemap    AssetType = "sitemap"
	AssetBlog       AssetType = "blog"
	AssetCompliance AssetType = "compliance"
	AssetSocial     AssetType = "social"
	AssetNews       AssetType = "news"
)

// AssetTypes lists every supported asset type.
var AssetTypes = []AssetType{
	AssetPricing, AssetFeatures, AssetChangelog, AssetSitemap,
	AssetBlog, AssetCompliance, AssetSocial, AssetNews,
}

// ParseAssetType normalizes a configured asset type. "twitter" is accepted
// as an alias of social.
func ParseAssetType(s string) (AssetType, bool) {
	if s == "twitter" {
		return AssetSocial, true
	}
	for _, t := range AssetTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Category is the closed set of change categories.
type Category string

const (
	CategoryPricing    Category = "pricing"
	CategoryFeature    Category = "feature"
	CategoryCompliance Category = "compliance"
	CategoryChangelog  Category = "changelog"
	CategorySitemap    Category = "sitemap"
	CategoryBlog       Category = "blog"
	CategoryContent    Category = "content"
	CategoryOther      Category = "other"
)

var categories = map[Category]bool{
	CategoryPricing: true, CategoryFeature: true, CategoryCompliance: true,
	CategoryChangelog: true, CategorySitemap: true, CategoryBlog: true,
	CategoryContent: true, CategoryOther: true,
}

// ParseCategory maps free text onto the closed category set. Unknown values
// become CategoryOther.
func ParseCategory(s string) Category {
	switch c := Category(s); {
	case categories[c]:
		return c
	case s == "features":
		return CategoryFeature
	default:
		return CategoryOther
	}
}

// CategoryForAsset returns the default change category for an asset type.
func CategoryForAsset(t AssetType) Category {
	switch t {
	case AssetPricing:
		return CategoryPricing
	case AssetFeatures:
		return CategoryFeature
	case AssetCompliance:
		return CategoryCompliance
	case AssetChangelog:
		return CategoryChangelog
	case AssetSitemap:
		return CategorySitemap
	case AssetBlog:
		return CategoryBlog
	default:
		return CategoryContent
	}
}

// Priority is the urgency tier of a classified change.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is one of the three tiers.
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// Ordinal maps a priority onto high=3, medium=2, low=1. Anything else,
// including the unset priority, ranks as medium.
func (p Priority) Ordinal() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityLow:
		return 1
	default:
		return 2
	}
}

// Channel is the delivery channel recorded on an Alert.
type Channel string

const (
	ChannelImmediate     Channel = "immediate"
	ChannelDailyDigest   Channel = "daily_digest"
	ChannelWeeklySummary Channel = "weekly_summary"
)

// Competitor is a monitored company.
type Competitor struct {
	ID        int64
	Name      string
	BaseURL   string
	CreatedAt time.Time
}

// Asset is a monitored resource belonging to one competitor.
type Asset struct {
	ID                int64
	CompetitorID      int64
	CompetitorName    string
	Type              AssetType
	URL               string
	CrawlFrequency    string
	PriorityThreshold Priority // empty when unset
	Active            bool
	CreatedAt         time.Time
}

// Snapshot is one immutable capture of an asset's content.
type Snapshot struct {
	ID          int64
	AssetID     int64
	ContentHash string
	Text        string
	HTML        string
	Structured  map[string]any // nil when the producer supplied no bag
	StatusCode  int
	CapturedAt  time.Time
}

// Change is the persisted record of a meaningful difference between two
// adjacent snapshots of one asset.
type Change struct {
	ID               int64
	AssetID          int64
	SnapshotBeforeID int64
	SnapshotAfterID  int64
	Category         Category
	Priority         Priority // empty until classified
	Summary          string
	Rationale        string
	Confidence       float64
	BeforeExcerpt    string
	AfterExcerpt     string
	DiffMetadata     json.RawMessage
	ChangePercentage float64
	SuppressedReason string
	DetectedAt       time.Time
	Sent             bool
	SentAt           time.Time // zero until sent
}

// ChangeDetail is a Change joined with the asset and competitor it
// belongs to.
type ChangeDetail struct {
	Change
	Company           string
	AssetType         AssetType
	AssetURL          string
	PriorityThreshold Priority
}

// Classification is the classifier output persisted onto a Change.
type Classification struct {
	Category   Category
	Priority   Priority
	Summary    string
	Rationale  string
	Confidence float64
}

// Alert is an append-only delivery record.
type Alert struct {
	ID           int64
	ChangeID     int64
	Priority     Priority
	DeliveryType Channel
	BatchID      string
	SentAt       time.Time
}

// ChangeFilter narrows ListChanges.
type ChangeFilter struct {
	AssetID      int64
	Priority     Priority
	Unsent       bool
	// Unclassified selects unsuppressed changes that have no priority yet.
	Unclassified bool
	Since        time.Time
	Limit        int
}

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit int       // max results (0 = unlimited)
	From  time.Time // timestamp >= From
	To    time.Time // timestamp <= To

	Purpose string // exact purpose label, empty for all
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEventRecord is a stored LLM request event.
type LLMRequestEventRecord struct {
	ID        int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMUsageStats aggregates requests per purpose.
type LLMUsageStats struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// LLMModelUsage aggregates token usage per model.
type LLMModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// EventRepo provides append and query access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEventRecord, error)

	// GetLLMEvent returns one event, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int64) (*LLMRequestEventRecord, error)

	// LLMUsageByPurpose aggregates events per purpose.
	LLMUsageByPurpose(ctx context.Context) ([]LLMUsageStats, error)

	// LLMUsageByModel aggregates events per model.
	LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error)
}

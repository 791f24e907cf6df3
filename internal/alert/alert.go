// Package alert routes classified changes to a notification sink, either
// immediately or batched into daily and weekly digests.
package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

// Record is one change as a notification sink receives it.
type Record struct {
	Company    string
	Priority   store.Priority
	AssetLabel string
	Category   store.Category
	Summary    string
	Rationale  string
	URL        string
	Timestamp  time.Time
}

// RecordFor builds the sink payload for a stored change.
func RecordFor(d store.ChangeDetail) Record {
	r := Record{
		Company:    d.Company,
		Priority:   d.Priority,
		AssetLabel: string(d.AssetType),
		Category:   d.Category,
		Summary:    d.Summary,
		Rationale:  d.Rationale,
		URL:        d.AssetURL,
		Timestamp:  d.DetectedAt,
	}
	if r.Priority == "" {
		r.Priority = store.PriorityMedium
	}
	if r.Category == "" {
		r.Category = "unknown"
	}
	if r.Summary == "" {
		r.Summary = "Change detected"
	}
	if r.Rationale == "" {
		r.Rationale = "Monitor for competitive intelligence"
	}
	return r
}

// Digest is a batch of records delivered as one message.
type Digest struct {
	Title   string
	Channel store.Channel
	Records []Record
}

// Group is the records of one company inside a digest.
type Group struct {
	Company string
	Records []Record
}

// Groups splits the digest by company, in the order companies first
// appear.
func (d Digest) Groups() []Group {
	var groups []Group
	index := make(map[string]int)
	for _, r := range d.Records {
		company := r.Company
		if company == "" {
			company = "Unknown"
		}
		i, ok := index[company]
		if !ok {
			i = len(groups)
			index[company] = i
			groups = append(groups, Group{Company: company})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	return groups
}

// Sink transmits alerts. A nil error means the message was accepted.
type Sink interface {
	Send(ctx context.Context, r Record) error
	SendDigest(ctx context.Context, d Digest) error
}

// DeliveryError reports a sink failure for one channel.
type DeliveryError struct {
	Channel store.Channel
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

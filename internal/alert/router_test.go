package alert

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

type recordingSink struct {
	mu      sync.Mutex
	alerts  []Record
	digests []Digest
	err     error
	// onSend runs after a transmission is accepted.
	onSend func()
}

func (s *recordingSink) Send(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.alerts = append(s.alerts, r)
	if s.onSend != nil {
		s.onSend()
	}
	return nil
}

func (s *recordingSink) SendDigest(_ context.Context, d Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.digests = append(s.digests, d)
	if s.onSend != nil {
		s.onSend()
	}
	return nil
}

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store  *store.Store
	sink   *recordingSink
	router *Router
	seq    int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "alert.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sink := &recordingSink{}
	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return testNow }
	return &fixture{store: st, sink: sink, router: NewRouter(st, sink, cfg)}
}

func (f *fixture) asset(t *testing.T, company string, threshold store.Priority) *store.Asset {
	t.Helper()
	ctx := context.Background()
	repo := f.store.Repo()
	c, _, err := repo.UpsertCompetitor(ctx, company, "https://"+company+".test")
	require.NoError(t, err)
	a, _, err := repo.UpsertAsset(ctx, store.Asset{
		CompetitorID:      c.ID,
		Type:              store.AssetPricing,
		URL:               "https://" + company + ".test/pricing",
		CrawlFrequency:    "daily",
		PriorityThreshold: threshold,
	})
	require.NoError(t, err)
	return a
}

// change stores a classified change detected at the given time.
func (f *fixture) change(t *testing.T, a *store.Asset, p store.Priority, detected time.Time) store.Change {
	t.Helper()
	ctx := context.Background()
	repo := f.store.Repo()

	f.seq++
	before := &store.Snapshot{AssetID: a.ID, ContentHash: fmt.Sprintf("b%d", f.seq), Text: "Plan A: $10/mo"}
	after := &store.Snapshot{AssetID: a.ID, ContentHash: fmt.Sprintf("a%d", f.seq), Text: "Plan A: $15/mo"}
	require.NoError(t, repo.AppendSnapshot(ctx, before))
	require.NoError(t, repo.AppendSnapshot(ctx, after))

	c := &store.Change{
		AssetID:          a.ID,
		SnapshotBeforeID: before.ID,
		SnapshotAfterID:  after.ID,
		Category:         store.CategoryPricing,
		Priority:         p,
		Summary:          "Plan A moved from $10/mo → $15/mo.",
		Rationale:        "Entry pricing is now above ours.",
		Confidence:       0.9,
		BeforeExcerpt:    before.Text,
		AfterExcerpt:     after.Text,
		DetectedAt:       detected,
	}
	require.NoError(t, repo.CreateChange(ctx, c))
	return *c
}

func classification(c store.Change) store.Classification {
	return store.Classification{
		Category:   c.Category,
		Priority:   c.Priority,
		Summary:    c.Summary,
		Rationale:  c.Rationale,
		Confidence: c.Confidence,
	}
}

func TestRoute_HighDeliversOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.change(t, f.asset(t, "acme", ""), store.PriorityHigh, testNow)

	d, err := f.router.Route(ctx, c, classification(c), "")
	require.NoError(t, err)
	assert.Equal(t, DeliverNow, d)
	require.Len(t, f.sink.alerts, 1)
	assert.Equal(t, "acme", f.sink.alerts[0].Company)
	assert.Equal(t, "https://acme.test/pricing", f.sink.alerts[0].URL)

	got, err := f.store.Repo().GetChange(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Sent)
	assert.True(t, got.SentAt.Equal(testNow))

	alerts, err := f.store.Repo().ListAlerts(ctx, c.ID, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, store.ChannelImmediate, alerts[0].DeliveryType)
	assert.NotEmpty(t, alerts[0].BatchID)

	// Routing the same change again never transmits twice.
	d, err = f.router.Route(ctx, c, classification(c), "")
	require.NoError(t, err)
	assert.Equal(t, DeliverNow, d)
	assert.Len(t, f.sink.alerts, 1)
	alerts, err = f.store.Repo().ListAlerts(ctx, c.ID, 0)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestRoute_SinkFailureLeavesChangeUnsent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.change(t, f.asset(t, "acme", ""), store.PriorityHigh, testNow)
	f.sink.err = errors.New("webhook down")

	_, err := f.router.Route(ctx, c, classification(c), "")
	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, store.ChannelImmediate, de.Channel)

	got, err := f.store.Repo().GetChange(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, got.Sent)

	// Once the sink recovers the pending change goes out.
	f.sink.err = nil
	n, err := f.router.DeliverPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, f.sink.alerts, 1)

	n, err = f.router.DeliverPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRoute_CancelAfterSendStillRecordsDelivery(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.sink.onSend = cancel
	c := f.change(t, f.asset(t, "acme", ""), store.PriorityHigh, testNow)

	d, err := f.router.Route(ctx, c, classification(c), "")
	require.NoError(t, err)
	assert.Equal(t, DeliverNow, d)

	got, err := f.store.Repo().GetChange(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, got.Sent)
	alerts, err := f.store.Repo().ListAlerts(context.Background(), c.ID, 0)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)

	n, err := f.router.DeliverPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.sink.alerts, 1)
}

func TestSweep_CancelAfterSendStillMarksBatch(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.sink.onSend = cancel
	a := f.asset(t, "acme", "")
	f.change(t, a, store.PriorityMedium, testNow.Add(-time.Hour))
	f.change(t, a, store.PriorityMedium, testNow.Add(-2*time.Hour))

	n, err := f.router.SweepDaily(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.router.SweepDaily(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.sink.digests, 1)
}

func TestDecide_DoesNotWrite(t *testing.T) {
	f := newFixture(t)
	c := f.change(t, f.asset(t, "acme", store.PriorityHigh), store.PriorityMedium, testNow)

	d, reason := f.router.Decide(c, classification(c), store.PriorityHigh)
	assert.Equal(t, Suppressed, d)
	assert.Equal(t, "priority medium below asset threshold high", reason)

	got, err := f.store.Repo().GetChange(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Empty(t, got.SuppressedReason)

	d, reason = f.router.Decide(c, classification(c), "")
	assert.Equal(t, QueueMedium, d)
	assert.Empty(t, reason)
}

func TestDispatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.asset(t, "acme", "")
	medium := f.change(t, a, store.PriorityMedium, testNow)
	high := f.change(t, a, store.PriorityHigh, testNow)

	require.NoError(t, f.router.Dispatch(ctx, medium.ID, QueueMedium))
	assert.Empty(t, f.sink.alerts)

	require.NoError(t, f.router.Dispatch(ctx, high.ID, DeliverNow))
	require.Len(t, f.sink.alerts, 1)
	got, err := f.store.Repo().GetChange(ctx, high.ID)
	require.NoError(t, err)
	assert.True(t, got.Sent)
}

func TestRoute_Tiers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.asset(t, "acme", "")

	medium := f.change(t, a, store.PriorityMedium, testNow)
	d, err := f.router.Route(ctx, medium, classification(medium), "")
	require.NoError(t, err)
	assert.Equal(t, QueueMedium, d)

	low := f.change(t, a, store.PriorityLow, testNow)
	d, err = f.router.Route(ctx, low, classification(low), "")
	require.NoError(t, err)
	assert.Equal(t, QueueLow, d)

	assert.Empty(t, f.sink.alerts)
}

func TestRoute_ThresholdOrdinal(t *testing.T) {
	priorities := []store.Priority{store.PriorityLow, store.PriorityMedium, store.PriorityHigh}
	for _, threshold := range priorities {
		for _, p := range priorities {
			t.Run(fmt.Sprintf("%s/%s", p, threshold), func(t *testing.T) {
				f := newFixture(t)
				ctx := context.Background()
				c := f.change(t, f.asset(t, "acme", threshold), p, testNow)

				d, err := f.router.Route(ctx, c, classification(c), threshold)
				require.NoError(t, err)
				assert.Equal(t, p.Ordinal() < threshold.Ordinal(), d == Suppressed)
			})
		}
	}
}

func TestRoute_ConfidentMediumBelowHighThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.change(t, f.asset(t, "acme", store.PriorityHigh), store.PriorityMedium, testNow)

	d, err := f.router.Route(ctx, c, classification(c), store.PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, Suppressed, d)

	got, err := f.store.Repo().GetChange(ctx, c.ID)
	require.NoError(t, err)
	assert.Contains(t, got.SuppressedReason, "below asset threshold high")

	n, err := f.router.SweepDaily(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRoute_UnknownThresholdRanksMedium(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.change(t, f.asset(t, "acme", ""), store.PriorityLow, testNow)

	d, err := f.router.Route(ctx, c, classification(c), "urgent")
	require.NoError(t, err)
	assert.Equal(t, Suppressed, d)
}

func TestRoute_QualityGateSuppresses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.change(t, f.asset(t, "acme", ""), store.PriorityHigh, testNow)
	cls := classification(c)
	cls.Rationale = "They could be planning a relaunch."

	d, err := f.router.Route(ctx, c, cls, "")
	require.NoError(t, err)
	assert.Equal(t, Suppressed, d)
	assert.Empty(t, f.sink.alerts)

	got, err := f.store.Repo().GetChange(ctx, c.ID)
	require.NoError(t, err)
	assert.Contains(t, got.SuppressedReason, "speculation")
	assert.False(t, got.Sent)
}

func TestSweepDaily_GroupsAndMarksBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acme := f.asset(t, "acme", "")
	globex := f.asset(t, "globex", "")

	c1 := f.change(t, acme, store.PriorityMedium, testNow.Add(-3*time.Hour))
	c2 := f.change(t, globex, store.PriorityMedium, testNow.Add(-2*time.Hour))
	c3 := f.change(t, acme, store.PriorityMedium, testNow.Add(-1*time.Hour))
	stale := f.change(t, acme, store.PriorityMedium, testNow.Add(-25*time.Hour))
	f.change(t, acme, store.PriorityLow, testNow)

	n, err := f.router.SweepDaily(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Len(t, f.sink.digests, 1)
	digest := f.sink.digests[0]
	assert.Equal(t, DailyTitle, digest.Title)
	groups := digest.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, "acme", groups[0].Company)
	assert.Len(t, groups[0].Records, 2)
	assert.Equal(t, "globex", groups[1].Company)

	var batch string
	for _, id := range []int64{c1.ID, c2.ID, c3.ID} {
		alerts, err := f.store.Repo().ListAlerts(ctx, id, 0)
		require.NoError(t, err)
		require.Len(t, alerts, 1)
		assert.Equal(t, store.ChannelDailyDigest, alerts[0].DeliveryType)
		if batch == "" {
			batch = alerts[0].BatchID
		}
		assert.Equal(t, batch, alerts[0].BatchID)
	}

	got, err := f.store.Repo().GetChange(ctx, stale.ID)
	require.NoError(t, err)
	assert.False(t, got.Sent, "outside the lookback window")

	// A second sweep finds nothing and transmits nothing.
	n, err = f.router.SweepDaily(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.sink.digests, 1)
}

func TestSweepWeekly_LowOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.asset(t, "acme", "")
	low := f.change(t, a, store.PriorityLow, testNow.Add(-6*24*time.Hour))
	f.change(t, a, store.PriorityMedium, testNow)

	n, err := f.router.SweepWeekly(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, f.sink.digests, 1)
	assert.Equal(t, WeeklyTitle, f.sink.digests[0].Title)
	assert.Equal(t, store.ChannelWeeklySummary, f.sink.digests[0].Channel)

	alerts, err := f.store.Repo().ListAlerts(ctx, low.ID, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, store.ChannelWeeklySummary, alerts[0].DeliveryType)
}

func TestSweep_FailureMarksNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.asset(t, "acme", "")
	c1 := f.change(t, a, store.PriorityMedium, testNow)
	c2 := f.change(t, a, store.PriorityMedium, testNow)
	f.sink.err = errors.New("503")

	_, err := f.router.SweepDaily(ctx)
	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, store.ChannelDailyDigest, de.Channel)

	for _, id := range []int64{c1.ID, c2.ID} {
		got, err := f.store.Repo().GetChange(ctx, id)
		require.NoError(t, err)
		assert.False(t, got.Sent)
	}
	alerts, err := f.store.Repo().ListAlerts(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestSweep_NothingPendingSendsNothing(t *testing.T) {
	f := newFixture(t)
	n, err := f.router.SweepWeekly(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.sink.digests)
}

func TestRecordFor_Fallbacks(t *testing.T) {
	r := RecordFor(store.ChangeDetail{Company: "acme", AssetType: store.AssetBlog})
	assert.Equal(t, store.PriorityMedium, r.Priority)
	assert.Equal(t, store.Category("unknown"), r.Category)
	assert.Equal(t, "Change detected", r.Summary)
	assert.Equal(t, "Monitor for competitive intelligence", r.Rationale)
	assert.Equal(t, "blog", r.AssetLabel)
}

package report

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-analytics/internal/analytics"
	"trade-analytics/internal/logging"
	"trade-analytics/internal/models"
)

type fakeBars struct {
	calls int
	bars  map[string]models.BarSeries
}

func (f *fakeBars) FetchForTrades(context.Context, []models.Trade) map[string]models.BarSeries {
	f.calls++
	return f.bars
}

type fakeWriter struct {
	updates map[string][]string
	err     error
}

func (f *fakeWriter) UpdateTradeTags(_ context.Context, id string, tags []string) error {
	if f.err != nil {
		return f.err
	}
	if f.updates == nil {
		f.updates = map[string][]string{}
	}
	f.updates[id] = tags
	return nil
}

func TestApplyAutoTagsReplacesStaleAutomatedTags(t *testing.T) {
	// 10:00 UTC exit, 10 minute hold: London session, Day-Trade.
	tr := mkTrade("1", "INFY", "5", t0, "Breakout", analytics.TagScalp, "Breakout")

	out, changes := ApplyAutoTags(analytics.Tagger{}, []models.Trade{tr}, nil)

	assert.Equal(t, []string{"Breakout", analytics.TagLondonSession, analytics.TagDayTrade}, out[0].Tags)
	assert.Equal(t, []string{analytics.TagLondonSession, analytics.TagDayTrade}, changes[0].Auto)
	assert.True(t, changes[0].Changed)
	assert.Equal(t, []string{"Breakout", analytics.TagScalp, "Breakout"}, tr.Tags, "input is not modified")
}

func TestAutoTagFetchesOnceAndPersistsChanges(t *testing.T) {
	done := mkTrade("1", "INFY", "5", t0, analytics.TagLondonSession, analytics.TagDayTrade)
	fresh := mkTrade("2", "INFY", "-10", t0.Add(time.Hour))
	src := &fakeBars{bars: map[string]models.BarSeries{
		"INFY": {
			{Timestamp: t0.Add(55 * time.Minute), High: d("101"), Low: d("80")},
		},
	}}
	w := &fakeWriter{}

	changes, err := AutoTag(context.Background(), analytics.Tagger{}, []models.Trade{done, fresh}, src, w)
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	require.Len(t, changes, 2)
	assert.False(t, changes[0].Changed)
	assert.True(t, changes[1].Changed)
	assert.NotContains(t, w.updates, "1")
	assert.Contains(t, w.updates["2"], analytics.TagLetLoserRun)
}

func TestAutoTagWriteFailure(t *testing.T) {
	w := &fakeWriter{err: errors.New("locked")}
	_, err := AutoTag(context.Background(), analytics.Tagger{}, []models.Trade{mkTrade("1", "INFY", "1", t0)}, nil, w)
	assert.Error(t, err)
}

func TestAutoTagLogsRetaggedTrades(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.WithLogger(context.Background(), zerolog.New(&buf).Level(zerolog.DebugLevel))

	_, err := AutoTag(ctx, analytics.Tagger{}, []models.Trade{mkTrade("7", "INFY", "1", t0)}, nil, &fakeWriter{})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"trade_id":"7"`)
	assert.Contains(t, buf.String(), "Trade retagged")
}

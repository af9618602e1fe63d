package bucket_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aevon-lab/aevon-rollup/internal/bucket"
	"github.com/aevon-lab/aevon-rollup/internal/core/aggregation"
	"github.com/aevon-lab/aevon-rollup/internal/core/timeframe"
	"github.com/aevon-lab/aevon-rollup/internal/metrics"
	bucketmocks "github.com/aevon-lab/aevon-rollup/internal/mocks/bucket"
)

var bar = bucket.Type{Name: "Bar", Keys: []string{"symbol"}}

func TestPhysicalName(t *testing.T) {
	tests := []struct {
		name   string
		typ    bucket.Type
		period timeframe.Timeframe
		want   string
	}{
		{name: "one minute", typ: bar, period: timeframe.Minutes(1), want: "bar_1m_live"},
		{name: "five minutes", typ: bar, period: timeframe.Minutes(5), want: "bar_5m_live"},
		{name: "one second", typ: bar, period: timeframe.OneSecond, want: "bar_1s_final"},
		{name: "hours", typ: bar, period: timeframe.Hours(1), want: "bar_1h_live"},
		{name: "alias", typ: bucket.Type{Name: "Bar", Alias: "Candles"}, period: timeframe.Minutes(1), want: "candles_1m_live"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, bucket.PhysicalName(tc.typ, tc.period))
		})
	}
}

func TestTypeFromSpec(t *testing.T) {
	spec := &aggregation.Spec{
		Target:  "Bar",
		Keys:    []aggregation.Column{{Name: "symbol"}},
		BasedOn: &aggregation.BasedOnSpec{Source: "sessions", DayKey: "day"},
	}
	typ := bucket.TypeFromSpec(spec)
	require.Equal(t, "bar", typ.BaseTopic())
	require.Equal(t, []string{"symbol", "day"}, typ.Keys)
}

func TestKeys(t *testing.T) {
	require.Equal(t, "", bucket.Prefix())
	require.Equal(t, "AB|", bucket.Prefix("AB"))
	require.Equal(t, "AB|2026-02-07|", bucket.Prefix("AB", "2026-02-07"))

	start := time.Date(2026, 2, 7, 10, 0, 0, 0, time.UTC)
	require.Equal(t, fmt.Sprintf("AB|%013d", start.UnixMilli()), bucket.EncodeKey([]string{"AB"}, start))

	key, err := bucket.RowKey(bar, aggregation.Row{Keys: map[string]string{"symbol": "AB"}, WindowStart: start})
	require.NoError(t, err)
	require.Equal(t, bucket.EncodeKey([]string{"AB"}, start), key)

	_, err = bucket.RowKey(bar, aggregation.Row{})
	require.Error(t, err)
}

func TestRegistry(t *testing.T) {
	reg := bucket.NewRegistry()
	reg.Register(bar)
	reg.Register(bucket.Type{Name: "Quote"})

	got, ok := reg.Lookup("Bar")
	require.True(t, ok)
	require.Equal(t, "bar", got.BaseTopic())
	require.Equal(t, []string{"Bar", "Quote"}, reg.Names())

	imported := bucket.Type{Name: "ImportedBar"}
	reg.Override(bar, timeframe.Minutes(1), bucket.ModeWrite, imported)

	require.Equal(t, "ImportedBar", reg.ResolveWrite(bar, timeframe.Minutes(1)).Name)
	require.Equal(t, "Bar", reg.ResolveRead(bar, timeframe.Minutes(1)).Name)
	require.Equal(t, "Bar", reg.ResolveWrite(bar, timeframe.Minutes(5)).Name)

	// last registration wins
	reg.Override(bar, timeframe.Minutes(1), bucket.ModeWrite, bucket.Type{Name: "Other"})
	require.Equal(t, "Other", reg.ResolveWrite(bar, timeframe.Minutes(1)).Name)

	reg.Clear()
	_, ok = reg.Lookup("Bar")
	require.False(t, ok)
	require.Equal(t, "Bar", reg.ResolveWrite(bar, timeframe.Minutes(1)).Name)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := bucket.NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg.Register(bucket.Type{Name: fmt.Sprintf("T%d", i)})
			reg.Override(bar, timeframe.Minutes(1), bucket.ModeRead, bucket.Type{Name: "x"})
			_ = reg.ResolveRead(bar, timeframe.Minutes(1))
		}(i)
	}
	wg.Wait()
	require.Len(t, reg.Names(), 16)
}

func TestReader_List(t *testing.T) {
	start := time.Date(2026, 2, 7, 10, 0, 0, 0, time.UTC)
	entry := func(sym string, ts time.Time, high string) bucket.Entry {
		return bucket.Entry{
			Key:   bucket.EncodeKey([]string{sym}, ts),
			Value: []byte(fmt.Sprintf(`{"SYMBOL":%q,"WINDOW_START":%d,"HIGH":%s}`, sym, ts.UnixMilli(), high)),
		}
	}

	t.Run("returns rows in scan order", func(t *testing.T) {
		cache := bucketmocks.NewTableCache(t)
		// scan order is key order, which need not be time order across keys
		cache.EXPECT().Scan(mock.Anything, "bar_1m_live", "AB|").Return([]bucket.Entry{
			entry("AB", start, "10.5"),
			entry("AB", start.Add(time.Minute), "11"),
		}, nil).Once()

		m := metrics.New()
		rows, err := bucket.NewReader(bucket.NewRegistry(), cache, m).
			List(context.Background(), bar, timeframe.Minutes(1), "AB")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		require.Equal(t, "AB", rows[0].Keys["symbol"])
		require.Equal(t, start, rows[0].WindowStart)
		require.True(t, decimal.RequireFromString("10.5").Equal(rows[0].Values["high"]))
		require.Equal(t, start.Add(time.Minute), rows[1].WindowStart)
	})

	t.Run("second grain is out of range", func(t *testing.T) {
		cache := bucketmocks.NewTableCache(t)
		_, err := bucket.NewReader(nil, cache, nil).List(context.Background(), bar, timeframe.OneSecond, "AB")
		require.ErrorIs(t, err, bucket.ErrRange)

		_, err = bucket.NewReader(nil, cache, nil).List(context.Background(), bar, timeframe.Seconds(30), "AB")
		require.ErrorIs(t, err, bucket.ErrRange)
	})

	t.Run("no rows is not found", func(t *testing.T) {
		cache := bucketmocks.NewTableCache(t)
		cache.EXPECT().Scan(mock.Anything, "bar_5m_live", "ZZ|").Return(nil, nil).Once()

		_, err := bucket.NewReader(nil, cache, nil).List(context.Background(), bar, timeframe.Minutes(5), "ZZ")
		require.ErrorIs(t, err, bucket.ErrNotFound)
	})

	t.Run("canceled context is never not found", func(t *testing.T) {
		cache := bucketmocks.NewTableCache(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := bucket.NewReader(nil, cache, nil).List(ctx, bar, timeframe.Minutes(1), "AB")
		require.ErrorIs(t, err, context.Canceled)
		require.False(t, errors.Is(err, bucket.ErrNotFound))
	})

	t.Run("cancellation during scan", func(t *testing.T) {
		cache := bucketmocks.NewTableCache(t)
		ctx, cancel := context.WithCancel(context.Background())
		cache.EXPECT().Scan(mock.Anything, "bar_1m_live", "AB|").
			RunAndReturn(func(context.Context, string, string) ([]bucket.Entry, error) {
				cancel()
				return nil, nil
			}).Once()

		_, err := bucket.NewReader(nil, cache, nil).List(ctx, bar, timeframe.Minutes(1), "AB")
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("read override", func(t *testing.T) {
		reg := bucket.NewRegistry()
		reg.Override(bar, timeframe.Minutes(1), bucket.ModeRead, bucket.Type{Name: "ImportedBar"})

		cache := bucketmocks.NewTableCache(t)
		cache.EXPECT().Scan(mock.Anything, "importedbar_1m_live", "").
			Return([]bucket.Entry{entry("AB", start, "1")}, nil).Once()

		rows, err := bucket.NewReader(reg, cache, nil).List(context.Background(), bar, timeframe.Minutes(1))
		require.NoError(t, err)
		require.Len(t, rows, 1)
	})

	t.Run("scan failure", func(t *testing.T) {
		cache := bucketmocks.NewTableCache(t)
		cache.EXPECT().Scan(mock.Anything, "bar_1m_live", "AB|").Return(nil, errors.New("connection reset")).Once()

		_, err := bucket.NewReader(nil, cache, nil).List(context.Background(), bar, timeframe.Minutes(1), "AB")
		require.Error(t, err)
		require.False(t, errors.Is(err, bucket.ErrNotFound))
	})

	t.Run("custom decoder", func(t *testing.T) {
		typ := bar
		typ.Decode = func(key string, _ []byte) (aggregation.Row, error) {
			return aggregation.Row{Key: "decoded:" + key}, nil
		}
		cache := bucketmocks.NewTableCache(t)
		cache.EXPECT().Scan(mock.Anything, "bar_1m_live", "AB|").Return([]bucket.Entry{{Key: "k"}}, nil).Once()

		rows, err := bucket.NewReader(nil, cache, nil).List(context.Background(), typ, timeframe.Minutes(1), "AB")
		require.NoError(t, err)
		require.Equal(t, "decoded:k", rows[0].Key)
	})
}

type record struct {
	topic, key, value string
}

type fakeSink struct {
	mu      sync.Mutex
	records []record
	err     error
}

func (s *fakeSink) Send(_ context.Context, topic string, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record{topic: topic, key: string(key), value: string(value)})
	return nil
}

func TestWriter_Append(t *testing.T) {
	start := time.Date(2026, 2, 7, 10, 0, 0, 0, time.UTC)
	row := aggregation.Row{
		Keys:        map[string]string{"symbol": "AB"},
		WindowStart: start,
		Values:      map[string]decimal.Decimal{"high": decimal.NewFromInt(12)},
	}

	t.Run("resolves the write topic", func(t *testing.T) {
		reg := bucket.NewRegistry()
		reg.Override(bar, timeframe.Minutes(1), bucket.ModeWrite, bucket.Type{Name: "ImportedBar", Keys: []string{"symbol"}})

		sink := &fakeSink{}
		require.NoError(t, bucket.NewWriter(reg, sink).Append(context.Background(), bar, timeframe.Minutes(1), row))

		require.Len(t, sink.records, 1)
		require.Equal(t, "importedbar_1m_live", sink.records[0].topic)
		require.Equal(t, bucket.EncodeKey([]string{"AB"}, start), sink.records[0].key)
		require.JSONEq(t, fmt.Sprintf(`{"symbol":"AB","high":12,"window_start":%d}`, start.UnixMilli()), sink.records[0].value)
	})

	t.Run("sink failure", func(t *testing.T) {
		sink := &fakeSink{err: errors.New("broker down")}
		err := bucket.NewWriter(nil, sink).Append(context.Background(), bar, timeframe.Minutes(1), row)
		require.Error(t, err)
		require.Contains(t, err.Error(), "bar_1m_live")
	})

	t.Run("missing key column", func(t *testing.T) {
		sink := &fakeSink{}
		err := bucket.NewWriter(nil, sink).Append(context.Background(), bar, timeframe.Minutes(1), aggregation.Row{})
		require.Error(t, err)
		require.Empty(t, sink.records)
	})
}

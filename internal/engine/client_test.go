package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aevon-lab/aevon-rollup/internal/core/aggregation"
	"github.com/aevon-lab/aevon-rollup/internal/model"
)

var entity = model.PhysicalEntity{
	DerivedEntity: aggregation.DerivedEntity{Role: aggregation.RoleLive},
	Topic:         "bar_1m_live",
}

func TestClient_Execute(t *testing.T) {
	var got ksqlRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/ksql", r.URL.Path)
		require.Contains(t, r.Header.Get("Content-Type"), "application/vnd.ksql.v1+json")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[{"@type":"currentStatus","commandStatus":{"status":"SUCCESS"}}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second, WithProperty("ksql.streams.auto.offset.reset", "earliest"))
	require.NoError(t, c.Execute(context.Background(), entity, "CREATE TABLE IF NOT EXISTS bar_1m_live AS SELECT 1;"))

	require.Equal(t, "CREATE TABLE IF NOT EXISTS bar_1m_live AS SELECT 1;", got.KSQL)
	require.Equal(t, map[string]string{"ksql.streams.auto.offset.reset": "earliest"}, got.StreamsProperties)
}

func TestClient_Execute_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantCode    int
		wantMessage string
	}{
		{
			name:        "statement error",
			status:      http.StatusBadRequest,
			body:        `{"@type":"statement_error","error_code":40001,"message":"Unknown source RATE"}`,
			wantCode:    40001,
			wantMessage: "Unknown source RATE",
		},
		{
			name:        "plain text body",
			status:      http.StatusServiceUnavailable,
			body:        "server is shutting down",
			wantMessage: "server is shutting down",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			err := NewClient(srv.URL, time.Second).Execute(context.Background(), entity, "CREATE ...;")
			var stmtErr *StatementError
			require.ErrorAs(t, err, &stmtErr)
			require.Equal(t, tc.status, stmtErr.Status)
			require.Equal(t, tc.wantCode, stmtErr.Code)
			require.Equal(t, tc.wantMessage, stmtErr.Message)
		})
	}
}

func TestClient_Execute_Canceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewClient(srv.URL, time.Second).Execute(ctx, entity, "CREATE ...;")
	require.True(t, errors.Is(err, context.Canceled))
}

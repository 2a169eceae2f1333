package main

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/levinOo/go-telemetry-project/internal/agent"
	"github.com/levinOo/go-telemetry-project/internal/agent/store"
	"github.com/levinOo/go-telemetry-project/internal/models"
)

func TestCompressData(t *testing.T) {
	original := []byte(`{"test":"value"}`)
	compressed, err := agent.CompressData(original)
	if err != nil {
		t.Fatalf("CompressData error: %v", err)
	}

	r, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("gzip.NewReader error: %v", err)
	}
	defer r.Close()

	decoded, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("Error decompressing data: %v", err)
	}

	if !bytes.Equal(decoded, original) {
		t.Errorf("Decompressed data doesn't match original.\nGot: %s\nWant: %s", decoded, original)
	}
}

func TestSendSnapshotBatch(t *testing.T) {
	expectedMetrics := map[string]bool{"agent_alloc_bytes": false, "agent_poll_count": false}
	requestCount := 0

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++

		if !strings.HasSuffix(r.URL.Path, "/updates") {
			t.Errorf("expected path to end with /updates, got %s", r.URL.Path)
		}

		if r.Header.Get("Content-Encoding") != "gzip" {
			t.Errorf("expected Content-Encoding: gzip, got %s", r.Header.Get("Content-Encoding"))
		}

		rdr, err := gzip.NewReader(r.Body)
		if err != nil {
			t.Errorf("gzip.NewReader error: %v", err)
			return
		}
		defer rdr.Close()

		body, err := io.ReadAll(rdr)
		if err != nil {
			t.Errorf("read error: %v", err)
		}

		var points []models.MetricPoint
		if err := json.Unmarshal(body, &points); err != nil {
			t.Errorf("unmarshal error: %v", err)
		}

		for _, point := range points {
			if point.Source != agent.AgentSource {
				t.Errorf("expected source %q, got %q", agent.AgentSource, point.Source)
			}
			if _, exists := expectedMetrics[point.Name]; exists {
				expectedMetrics[point.Name] = true
			}
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	snapshot := store.Snapshot{
		Alloc:     store.Gauge(42.42),
		PollCount: store.Gauge(7),
	}

	err := agent.SendSnapshotBatch(ts.URL, &snapshot)
	if err != nil {
		t.Errorf("SendSnapshotBatch failed: %v", err)
	}

	if requestCount != 1 {
		t.Errorf("expected 1 request, got %d", requestCount)
	}

	for name, received := range expectedMetrics {
		if !received {
			t.Errorf("metric %s was not sent", name)
		}
	}
}

func TestSnapshotCollect(t *testing.T) {
	snapshot := store.NewSnapshot()
	snapshot.Collect()
	snapshot.Collect()

	if snapshot.PollCount != 2 {
		t.Errorf("expected PollCount 2, got %v", snapshot.PollCount)
	}
	if snapshot.Sys == 0 {
		t.Error("expected Sys to be collected from runtime")
	}

	points := snapshot.Points(agent.AgentSource)
	if len(points) != len(snapshot.Values()) {
		t.Errorf("expected %d points, got %d", len(snapshot.Values()), len(points))
	}
}

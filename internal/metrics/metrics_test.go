package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/hitoshi/postrelay/internal/model"
)

// findMetricFamily はレジストリから指定名のメトリクスファミリーを探す。
func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// labelsOf はメトリクスのラベルをmapに変換する。
func labelsOf(m *dto.Metric) map[string]string {
	labels := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	return labels
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestCollector_ImplementsInterface はCollectorがMetricsCollectorを満たすことを検証する。
func TestCollector_ImplementsInterface(t *testing.T) {
	var _ MetricsCollector = NewCollector(prometheus.NewRegistry())
}

// TestRecordPublishSuccess_IncrementsCounterWithLabels は投稿成功カウンタがラベル付きで増加することを検証する。
func TestRecordPublishSuccess_IncrementsCounterWithLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPublishSuccess(model.PlatformFacebook, "feed")
	c.RecordPublishSuccess(model.PlatformFacebook, "feed")
	c.RecordPublishSuccess(model.PlatformFacebook, "photos+feed")
	c.RecordPublishSuccess(model.PlatformThreads, "threads")

	mf := findMetricFamily(t, reg, "postrelay_publish_success_total")
	if len(mf.GetMetric()) != 3 {
		t.Fatalf("expected 3 label combinations, got %d", len(mf.GetMetric()))
	}

	for _, m := range mf.GetMetric() {
		labels := labelsOf(m)
		val := m.GetCounter().GetValue()
		switch labels["platform"] + "/" + labels["endpoint"] {
		case "Facebook/feed":
			if val != 2 {
				t.Errorf("publish_success_total{Facebook,feed} = %v, want 2", val)
			}
		case "Facebook/photos+feed", "Threads/threads":
			if val != 1 {
				t.Errorf("publish_success_total%v = %v, want 1", labels, val)
			}
		default:
			t.Errorf("unexpected labels: %v", labels)
		}
	}
}

// TestRecordPublishFailure_IncrementsCounter は投稿失敗カウンタが増加することを検証する。
func TestRecordPublishFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPublishFailure(model.PlatformThreads, "upstream")

	mf := findMetricFamily(t, reg, "postrelay_publish_fail_total")
	m := mf.GetMetric()[0]
	if val := m.GetCounter().GetValue(); val != 1 {
		t.Errorf("publish_fail_total = %v, want 1", val)
	}
	if labels := labelsOf(m); labels["reason"] != "upstream" || labels["platform"] != "Threads" {
		t.Errorf("labels = %v", labels)
	}
}

// TestObserveUpstream_RecordsStatusAndLatency は外部API呼び出しのステータスとレイテンシが記録されることを検証する。
func TestObserveUpstream_RecordsStatusAndLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveUpstream(model.PlatformFacebook, "photos", 200, 100*time.Millisecond)
	c.ObserveUpstream(model.PlatformFacebook, "photos", 400, 2*time.Second)
	c.ObserveUpstream(model.PlatformFacebook, "photos", 0, 0)

	status := findMetricFamily(t, reg, "postrelay_upstream_status_total")
	if len(status.GetMetric()) != 3 {
		t.Fatalf("expected 3 status codes, got %d", len(status.GetMetric()))
	}
	for _, m := range status.GetMetric() {
		code := labelsOf(m)["status_code"]
		if code != "200" && code != "400" && code != "0" {
			t.Errorf("unexpected status_code label: %s", code)
		}
		if val := m.GetCounter().GetValue(); val != 1 {
			t.Errorf("upstream_status_total{%s} = %v, want 1", code, val)
		}
	}

	latency := findMetricFamily(t, reg, "postrelay_upstream_latency_seconds")
	h := latency.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 3 {
		t.Errorf("sample_count = %d, want 3", h.GetSampleCount())
	}
	// 合計は0.1 + 2.0 = 2.1秒
	if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
		t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
	}
}

// TestRecordImageBytes_ObservesHistogram は画像サイズのヒストグラムに値が記録されることを検証する。
func TestRecordImageBytes_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordImageBytes("drive", 2048)
	c.RecordImageBytes("inline", 500)

	mf := findMetricFamily(t, reg, "postrelay_image_bytes")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(mf.GetMetric()))
	}
	var total float64
	for _, m := range mf.GetMetric() {
		total += m.GetHistogram().GetSampleSum()
	}
	if total != 2548 {
		t.Errorf("sample_sum total = %v, want 2548", total)
	}
}

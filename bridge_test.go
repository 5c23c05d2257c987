package mbean_bridge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/fllarpy/mbean-bridge/config"
	"github.com/fllarpy/mbean-bridge/domain/metrics"
	"github.com/fllarpy/mbean-bridge/internal/filter"
	pkgconfig "github.com/fllarpy/mbean-bridge/pkg/config"
)

type sampleDoc struct {
	Value  any               `json:"value"`
	Labels map[string]string `json:"labels"`
}

type metricDoc struct {
	Docstring  string            `json:"docstring"`
	BaseLabels map[string]string `json:"baseLabels"`
	Metric     struct {
		Type  string      `json:"type"`
		Value []sampleDoc `json:"value"`
	} `json:"metric"`
	Error  string `json:"error"`
	Target string `json:"target"`
}

func testConfig() config.Config {
	return config.Config{
		Listen:        ":0",
		ServiceName:   "mbean-bridge-test",
		LogLevel:      "info",
		TargetTimeout: 5 * time.Second,
		RemoteTargets: true,
		ServeRegistry: true,
		Naming:        "type-labels",
		MaxDepth:      8,
		DefaultAction: "exclude",
		PatternSyntax: "glob",
		Whitelist: []string{
			"java.lang:*",
			"org.apache.cassandra.*:*",
			"hadoop:*",
			"database.sql:*",
		},
		Blacklist: []string{"java.lang:type=Compilation"},
		Beans: config.Beans{
			Fixture: "example/sample.yaml",
			DataSources: []config.DataSource{
				{Name: "main", Driver: "sqlite", DSN: ":memory:"},
			},
		},
	}
}

func testSelfConfig() *pkgconfig.Config {
	return &pkgconfig.Config{
		Enabled:         true,
		DebugEndpoint:   "/debug/bridge",
		ErrorBufferSize: 10,
	}
}

func startBridge(t *testing.T, cfg config.Config) (*Bridge, *httptest.Server) {
	t.Helper()
	b, err := NewBridge(context.Background(), cfg, testSelfConfig())
	require.NoError(t, err)
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(func() {
		srv.Close()
		assert.NoError(t, b.Shutdown(context.Background()))
	})
	return b, srv
}

func fetch(t *testing.T, srv *httptest.Server, query string) map[string]metricDoc {
	t.Helper()
	docs := fetchRaw(t, srv, query)
	byName := make(map[string]metricDoc, len(docs))
	for _, d := range docs {
		require.Empty(t, d.Error, "unexpected error document for %q", query)
		byName[d.BaseLabels["__name__"]] = d
	}
	return byName
}

func fetchRaw(t *testing.T, srv *httptest.Server, query string) []metricDoc {
	t.Helper()
	resp, err := http.Get(srv.URL + "/" + query)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var docs []metricDoc
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&docs))
	require.NotEmpty(t, docs)
	return docs
}

func value(t *testing.T, d metricDoc) float64 {
	t.Helper()
	require.NotEmpty(t, d.Metric.Value)
	f, ok := d.Metric.Value[0].Value.(float64)
	require.True(t, ok, "value %v is not a number", d.Metric.Value[0].Value)
	return f
}

func TestBridgeLocalMetrics(t *testing.T) {
	_, srv := startBridge(t, testConfig())
	docs := fetch(t, srv, "")

	t.Run("cassandra thread pool", func(t *testing.T) {
		d, ok := docs["org_apache_cassandra_concurrent_CONSISTENCY_MANAGER_ActiveCount"]
		require.True(t, ok)
		assert.Equal(t, "gauge", d.Metric.Type)
		assert.Equal(t, "Attribute exposed for management", d.Docstring)
		require.Len(t, d.Metric.Value, 1)
		assert.Equal(t, 100.0, value(t, d))
		assert.Empty(t, d.Metric.Value[0].Labels)
	})

	t.Run("cassandra metric with name label", func(t *testing.T) {
		d, ok := docs["org_apache_cassandra_metrics_Compaction_Value"]
		require.True(t, ok)
		require.Len(t, d.Metric.Value, 2)
		var completed *sampleDoc
		for i := range d.Metric.Value {
			if d.Metric.Value[i].Labels["name"] == "CompletedTasks" {
				completed = &d.Metric.Value[i]
			}
		}
		require.NotNil(t, completed)
		assert.Equal(t, 0.2, completed.Value)
	})

	t.Run("failing attribute is skipped", func(t *testing.T) {
		assert.NotContains(t, docs, "org_apache_cassandra_metrics_Compaction_RecentValue")
	})

	t.Run("hadoop", func(t *testing.T) {
		d, ok := docs["hadoop_DataNode_replaceBlockOpMinTime"]
		require.True(t, ok)
		assert.Equal(t, 200.0, value(t, d))
		assert.Equal(t, map[string]string{
			"name":    "DataNodeActivity-ams-hdd001-50010",
			"service": "DataNode",
		}, d.Metric.Value[0].Labels)
		assert.NotContains(t, docs, "hadoop_DataNode_tag_Hostname", "strings are not gauges")
	})

	t.Run("composite", func(t *testing.T) {
		d, ok := docs["java_lang_MemoryPool_PeakUsage_init"]
		require.True(t, ok)
		assert.Greater(t, value(t, d), 0.0)
		assert.Equal(t, "Peak memory usage of this pool", d.Docstring)
		assert.NotContains(t, docs, "java_lang_MemoryPool_MemoryManagerNames")
	})

	t.Run("tabular", func(t *testing.T) {
		d, ok := docs["java_lang_GarbageCollector_LastGcInfo_memoryUsageAfterGc_committed"]
		require.True(t, ok)
		require.Len(t, d.Metric.Value, 3)
		keys := make([]string, 0, 3)
		for _, s := range d.Metric.Value {
			assert.Greater(t, s.Value, 0.0)
			assert.Equal(t, "PS Scavenge", s.Labels["name"])
			keys = append(keys, s.Labels["key"])
		}
		assert.ElementsMatch(t, []string{"PS Eden Space", "PS Old Gen", "PS Survivor Space"}, keys)
	})

	t.Run("booleans", func(t *testing.T) {
		assert.Equal(t, 1.0, value(t, docs["java_lang_MemoryPool_Valid"]))
		assert.Equal(t, 0.0, value(t, docs["java_lang_ClassLoading_Verbose"]))
	})

	t.Run("blacklist and whitelist", func(t *testing.T) {
		assert.NotContains(t, docs, "java_lang_Compilation_TotalCompilationTime")
		assert.Contains(t, docs, "java_lang_ClassLoading_LoadedClassCount")
	})

	t.Run("data source", func(t *testing.T) {
		d, ok := docs["database_sql_DataSource_Reachable"]
		require.True(t, ok)
		assert.Equal(t, 1.0, value(t, d))
		assert.Equal(t, map[string]string{"name": "main"}, d.Metric.Value[0].Labels)
	})
}

func TestBridgeIdempotent(t *testing.T) {
	// Pool statistics move once the first ping opens a connection.
	cfg := testConfig()
	cfg.Beans.DataSources = nil
	_, srv := startBridge(t, cfg)
	first := fetchRaw(t, srv, "")
	second := fetchRaw(t, srv, "")
	assert.Equal(t, first, second)
}

func TestBridgeMetricsPathAndText(t *testing.T) {
	_, srv := startBridge(t, testConfig())

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/metrics", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/plain")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	require.NoError(t, err)
	fam, ok := families["org_apache_cassandra_concurrent_CONSISTENCY_MANAGER_ActiveCount"]
	require.True(t, ok)
	require.Len(t, fam.GetMetric(), 1)
	assert.Equal(t, 100.0, fam.GetMetric()[0].GetGauge().GetValue())
}

func TestBridgeRemoteTarget(t *testing.T) {
	// One bridge serves the sample registry, a second one scrapes it.
	_, registry := startBridge(t, testConfig())

	cfg := testConfig()
	cfg.Beans = config.Beans{}
	cfg.ServeRegistry = false
	_, srv := startBridge(t, cfg)

	target := strings.TrimPrefix(registry.URL, "http://")
	docs := fetch(t, srv, "?target="+url.QueryEscape(target))
	assert.Equal(t, 100.0, value(t, docs["org_apache_cassandra_concurrent_CONSISTENCY_MANAGER_ActiveCount"]))
	assert.Contains(t, docs, "java_lang_GarbageCollector_LastGcInfo_memoryUsageAfterGc_committed")
	assert.NotContains(t, docs, "java_lang_Compilation_TotalCompilationTime")
}

func TestBridgeBadTargets(t *testing.T) {
	_, srv := startBridge(t, testConfig())

	for _, target := range []string{"host:bad-port", "localhost:10101"} {
		t.Run(target, func(t *testing.T) {
			docs := fetchRaw(t, srv, "?target="+url.QueryEscape(target))
			require.Len(t, docs, 1)
			assert.NotEmpty(t, docs[0].Error)
			assert.Equal(t, target, docs[0].Target)
		})
	}
}

func TestBridgeRemoteTargetsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.RemoteTargets = false
	_, srv := startBridge(t, cfg)

	docs := fetchRaw(t, srv, "?target=localhost:10101")
	assert.NotEmpty(t, docs[0].Error)
}

func TestBridgeRegistryEndpoints(t *testing.T) {
	_, srv := startBridge(t, testConfig())

	resp, err := http.Get(srv.URL + "/registry/v1/objects")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "CONSISTENCY-MANAGER")

	cfg := testConfig()
	cfg.ServeRegistry = false
	_, closed := startBridge(t, cfg)
	resp, err = http.Get(closed.URL + "/registry/v1/objects")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBridgeStatsEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Tracing = true
	b, srv := startBridge(t, cfg)

	fetchRaw(t, srv, "")
	fetchRaw(t, srv, "?target=host:bad-port")

	resp, err := http.Get(srv.URL + "/debug/bridge")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snapshot struct {
		Endpoints map[string]json.RawMessage               `json:"endpoints"`
		Targets   map[string]metrics.TargetMetricsSnapshot `json:"targets"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	assert.Contains(t, snapshot.Endpoints, "/")

	bad, ok := b.Store().TargetSnapshot("host:bad-port")
	require.True(t, ok)
	assert.Equal(t, uint64(1), bad.Failures)

	// Collection spans are exported in batches.
	require.NoError(t, b.tp.ForceFlush(context.Background()))
	local, ok := b.Store().TargetSnapshot(metrics.LocalTarget)
	require.True(t, ok)
	assert.Equal(t, uint64(1), local.Scrapes)
}

func TestBridgeMethodNotAllowed(t *testing.T) {
	_, srv := startBridge(t, testConfig())
	resp, err := http.Post(srv.URL+"/metrics", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestNewBridgeRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"bad rule", func(c *config.Config) {
			c.Rules = append(c.Rules, filter.RuleSpec{Action: "include", Object: "[unclosed"})
		}},
		{"bad naming", func(c *config.Config) { c.Naming = "camel" }},
		{"missing fixture", func(c *config.Config) { c.Beans.Fixture = "example/missing.yaml" }},
		{"unknown driver", func(c *config.Config) {
			c.Beans.DataSources = []config.DataSource{{Name: "x", Driver: "nosuchdriver"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(&cfg)
			_, err := NewBridge(context.Background(), cfg, testSelfConfig())
			assert.Error(t, err)
		})
	}
}

func TestBridgeReportsChattyScrapes(t *testing.T) {
	_, registry := startBridge(t, testConfig())

	cfg := testConfig()
	cfg.Beans = config.Beans{}
	cfg.Tracing = true
	selfCfg := testSelfConfig()
	selfCfg.NPlusOneEnabled = true
	selfCfg.NPlusOneThreshold = 5
	b, err := NewBridge(context.Background(), cfg, selfCfg)
	require.NoError(t, err)
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	target := strings.TrimPrefix(registry.URL, "http://")
	fetch(t, srv, "?target="+url.QueryEscape(target))

	// Shutdown flushes the batched spans into the store.
	require.NoError(t, b.Shutdown(context.Background()))
	var found bool
	for _, event := range b.Store().GetSnapshot().Errors {
		if event.Target == target && strings.Contains(event.Error, "registry calls") {
			found = true
		}
	}
	assert.True(t, found, "a remote scrape reading every attribute is reported")

	remote, ok := b.Store().TargetSnapshot(target)
	require.True(t, ok)
	assert.Equal(t, uint64(1), remote.Scrapes)
	assert.Zero(t, remote.Failures)
}

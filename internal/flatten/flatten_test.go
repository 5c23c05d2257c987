package flatten

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fllarpy/mbean-bridge/domain/mbean"
	"github.com/fllarpy/mbean-bridge/internal/naming"
)

func attr(name string) mbean.AttributeDescriptor {
	return mbean.AttributeDescriptor{Name: name}
}

func TestFlatten_Scalar(t *testing.T) {
	f := New(nil, 0)
	object := mbean.MustParseObjectName("org.apache.cassandra.concurrent:type=CONSISTENCY-MANAGER")

	out := f.Flatten(object, attr("ActiveCount"), mbean.Number(100))
	require.Len(t, out, 1)
	assert.Equal(t, mbean.MetricName("org_apache_cassandra_concurrent_CONSISTENCY_MANAGER_ActiveCount"), out[0].Name)
	assert.Equal(t, 100.0, out[0].Value)
	assert.Nil(t, out[0].Labels, "scalar samples carry no labels")
}

func TestFlatten_BoolAndDropped(t *testing.T) {
	f := New(nil, 0)
	object := mbean.MustParseObjectName("a:type=B")

	out := f.Flatten(object, attr("Verbose"), mbean.Bool(true))
	require.Len(t, out, 1)
	assert.Equal(t, 1.0, out[0].Value)

	out = f.Flatten(object, attr("Verbose"), mbean.Bool(false))
	require.Len(t, out, 1)
	assert.Equal(t, 0.0, out[0].Value)

	assert.Empty(t, f.Flatten(object, attr("Name"), mbean.String("x")))
	assert.Empty(t, f.Flatten(object, attr("Blob"), mbean.Unsupported()))
}

func TestFlatten_Composite(t *testing.T) {
	f := New(nil, 0)
	object := mbean.MustParseObjectName("java.lang:type=MemoryPool")

	usage := mbean.Composite(
		mbean.F("init", mbean.Number(1024)),
		mbean.F("used", mbean.Number(512)),
		mbean.F("label", mbean.String("ignored")),
	)
	out := f.Flatten(object, attr("PeakUsage"), usage)
	require.Len(t, out, 2)
	assert.Equal(t, mbean.MetricName("java_lang_MemoryPool_PeakUsage_init"), out[0].Name)
	assert.Equal(t, 1024.0, out[0].Value)
	assert.Equal(t, mbean.MetricName("java_lang_MemoryPool_PeakUsage_used"), out[1].Name)
}

func TestFlatten_NestedTabular(t *testing.T) {
	f := New(nil, 0)
	object := mbean.MustParseObjectName("java.lang:type=GarbageCollector")

	usage := func(committed float64) mbean.Value {
		return mbean.Composite(
			mbean.F("committed", mbean.Number(committed)),
			mbean.F("used", mbean.Number(committed/2)),
		)
	}
	lastGc := mbean.Composite(
		mbean.F("duration", mbean.Number(7)),
		mbean.F("memoryUsageAfterGc", mbean.Tabular([]string{"key"},
			[]mbean.Field{mbean.F("key", mbean.String("Eden")), mbean.F("value", usage(64))},
			[]mbean.Field{mbean.F("key", mbean.String("Old Gen")), mbean.F("value", usage(128))},
		)),
	)

	out := f.Flatten(object, attr("LastGcInfo"), lastGc)
	require.Len(t, out, 5)

	assert.Equal(t, mbean.MetricName("java_lang_GarbageCollector_LastGcInfo_duration"), out[0].Name)
	assert.Nil(t, out[0].Labels)

	committed := mbean.MetricName("java_lang_GarbageCollector_LastGcInfo_memoryUsageAfterGc_committed")
	assert.Equal(t, committed, out[1].Name)
	assert.Equal(t, mbean.Labels{"key": "Eden"}, out[1].Labels)
	assert.Equal(t, 64.0, out[1].Value)
	assert.Equal(t, committed, out[3].Name)
	assert.Equal(t, mbean.Labels{"key": "Old Gen"}, out[3].Labels)
	assert.Equal(t, 128.0, out[3].Value)
}

func TestFlatten_TabularRowsShareName(t *testing.T) {
	f := New(nil, 0)
	object := mbean.MustParseObjectName("app:type=Queues")

	table := mbean.Tabular([]string{"queue", "shard"},
		[]mbean.Field{mbean.F("queue", mbean.String("a")), mbean.F("shard", mbean.Number(1)), mbean.F("depth", mbean.Number(3))},
		[]mbean.Field{mbean.F("queue", mbean.String("b")), mbean.F("shard", mbean.Number(2)), mbean.F("depth", mbean.Number(4))},
	)
	out := f.Flatten(object, attr("Depths"), table)
	require.Len(t, out, 2)
	assert.Equal(t, out[0].Name, out[1].Name, "all rows collapse into one metric name")
	assert.Equal(t, mbean.MetricName("app_Queues_Depths"), out[0].Name)
	assert.Equal(t, mbean.Labels{"queue": "a", "shard": "1"}, out[0].Labels)
	assert.Equal(t, mbean.Labels{"queue": "b", "shard": "2"}, out[1].Labels)
}

func TestFlatten_TabularSeveralValueColumns(t *testing.T) {
	f := New(nil, 0)
	object := mbean.MustParseObjectName("app:type=Pools")

	table := mbean.Tabular([]string{"pool"},
		[]mbean.Field{mbean.F("pool", mbean.String("p1")), mbean.F("active", mbean.Number(1)), mbean.F("idle", mbean.Number(2))},
	)
	out := f.Flatten(object, attr("Stats"), table)
	require.Len(t, out, 2)
	assert.Equal(t, mbean.MetricName("app_Pools_Stats_active"), out[0].Name)
	assert.Equal(t, mbean.MetricName("app_Pools_Stats_idle"), out[1].Name)
	assert.Equal(t, mbean.Labels{"pool": "p1"}, out[1].Labels)
}

func TestFlatten_NoNumericLeaves(t *testing.T) {
	f := New(nil, 0)
	object := mbean.MustParseObjectName("a:type=B")

	assert.Empty(t, f.Flatten(object, attr("C"), mbean.Composite(mbean.F("s", mbean.String("x")))))
	assert.Empty(t, f.Flatten(object, attr("T"), mbean.Tabular([]string{"k"})))
}

func TestFlatten_MaxDepth(t *testing.T) {
	f := New(nil, 1)
	object := mbean.MustParseObjectName("a:type=B")

	deep := mbean.Composite(
		mbean.F("shallow", mbean.Number(1)),
		mbean.F("nested", mbean.Composite(mbean.F("deep", mbean.Number(2)))),
	)
	out := f.Flatten(object, attr("C"), deep)
	require.Len(t, out, 1)
	assert.Equal(t, mbean.MetricName("a_B_C_shallow"), out[0].Name)
}

func TestFlatten_TypeLabelsMode(t *testing.T) {
	f := New(naming.NewNamer(naming.ModeTypeLabels), 0)
	object := mbean.MustParseObjectName("org.apache.cassandra.metrics:type=Compaction,name=CompletedTasks")

	out := f.Flatten(object, attr("Value"), mbean.Number(0.2))
	require.Len(t, out, 1)
	assert.Equal(t, mbean.MetricName("org_apache_cassandra_metrics_Compaction_Value"), out[0].Name)
	assert.Equal(t, mbean.Labels{"name": "CompletedTasks"}, out[0].Labels)
}

func TestFlatten_LabelsAreNotShared(t *testing.T) {
	f := New(naming.NewNamer(naming.ModeTypeLabels), 0)
	object := mbean.MustParseObjectName("a:type=B,name=n")

	table := mbean.Tabular([]string{"k"},
		[]mbean.Field{mbean.F("k", mbean.String("x")), mbean.F("v", mbean.Number(1))},
		[]mbean.Field{mbean.F("k", mbean.String("y")), mbean.F("v", mbean.Number(2))},
	)
	out := f.Flatten(object, attr("T"), table)
	require.Len(t, out, 2)
	out[0].Labels["k"] = "mutated"
	assert.Equal(t, "y", out[1].Labels["k"])
	assert.Equal(t, "n", out[1].Labels["name"])
}

func TestFlatten_LastGcInfo(t *testing.T) {
	f := New(naming.NewNamer(naming.ModeTypeLabels), 0)
	object := mbean.MustParseObjectName("java.lang:type=GarbageCollector,name=PS Scavenge")

	usage := func(committed, used float64) mbean.Value {
		return mbean.Composite(mbean.F("committed", mbean.Number(committed)), mbean.F("used", mbean.Number(used)))
	}
	info := mbean.Composite(
		mbean.F("duration", mbean.Number(12)),
		mbean.F("memoryUsageAfterGc", mbean.Tabular([]string{"key"},
			[]mbean.Field{mbean.F("key", mbean.String("PS Eden Space")), mbean.F("value", usage(1024, 0))},
			[]mbean.Field{mbean.F("key", mbean.String("PS Old Gen")), mbean.F("value", usage(2048, 512))},
		)),
	)

	const prefix = "java_lang_GarbageCollector_LastGcInfo_"
	eden := mbean.Labels{"name": "PS Scavenge", "key": "PS Eden Space"}
	old := mbean.Labels{"name": "PS Scavenge", "key": "PS Old Gen"}
	want := []Triple{
		{Name: prefix + "duration", Value: 12, Labels: mbean.Labels{"name": "PS Scavenge"}},
		{Name: prefix + "memoryUsageAfterGc_committed", Value: 1024, Labels: eden},
		{Name: prefix + "memoryUsageAfterGc_used", Value: 0, Labels: eden},
		{Name: prefix + "memoryUsageAfterGc_committed", Value: 2048, Labels: old},
		{Name: prefix + "memoryUsageAfterGc_used", Value: 512, Labels: old},
	}
	if diff := cmp.Diff(want, f.Flatten(object, attr("LastGcInfo"), info)); diff != "" {
		t.Errorf("Flatten() mismatch (-want +got):\n%s", diff)
	}
}

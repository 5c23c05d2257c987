package http_reporter

import (
	"log"
	"net/http"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/fllarpy/mbean-bridge/domain/mbean"
)

var textFormat = expfmt.NewFormat(expfmt.TypeTextPlain)

// toFamilies converts metric groups into Prometheus metric families. Label
// pairs are sorted by name as the exposition format expects.
func toFamilies(groups []mbean.MetricGroup) []*dto.MetricFamily {
	families := make([]*dto.MetricFamily, 0, len(groups))
	for _, g := range groups {
		mf := &dto.MetricFamily{
			Name: proto.String(string(g.Name)),
			Help: proto.String(g.Docstring),
			Type: dto.MetricType_GAUGE.Enum(),
		}
		for _, s := range g.Samples {
			m := &dto.Metric{Gauge: &dto.Gauge{Value: proto.Float64(s.Value)}}
			for name, value := range s.Labels {
				m.Label = append(m.Label, &dto.LabelPair{
					Name:  proto.String(name),
					Value: proto.String(value),
				})
			}
			sort.Slice(m.Label, func(i, j int) bool {
				return m.Label[i].GetName() < m.Label[j].GetName()
			})
			mf.Metric = append(mf.Metric, m)
		}
		families = append(families, mf)
	}
	return families
}

func writeText(w http.ResponseWriter, groups []mbean.MetricGroup) {
	w.Header().Set("Content-Type", string(textFormat))
	w.WriteHeader(http.StatusOK)

	enc := expfmt.NewEncoder(w, textFormat)
	for _, mf := range toFamilies(groups) {
		if err := enc.Encode(mf); err != nil {
			log.Printf("Reporter: failed to encode %s: %v", mf.GetName(), err)
			return
		}
	}
}

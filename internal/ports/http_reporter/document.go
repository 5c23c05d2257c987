package http_reporter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/fllarpy/mbean-bridge/domain"
	"github.com/fllarpy/mbean-bridge/domain/mbean"
)

var errRemoteDisabled = fmt.Errorf("%w: remote targets are disabled", domain.ErrConnection)

// metricDocument is one element of the JSON metrics document.
type metricDocument struct {
	Docstring  string            `json:"docstring"`
	BaseLabels map[string]string `json:"baseLabels"`
	Metric     metricBody        `json:"metric"`
}

type metricBody struct {
	Type  string           `json:"type"`
	Value []sampleDocument `json:"value"`
}

type sampleDocument struct {
	Value  sampleValue  `json:"value"`
	Labels mbean.Labels `json:"labels,omitempty"`
}

// sampleValue encodes non-finite values as the strings "NaN", "+Inf" and
// "-Inf", which JSON numbers cannot carry.
type sampleValue float64

func (v sampleValue) MarshalJSON() ([]byte, error) {
	f := float64(v)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

// errorDocument is the only element of an error response.
type errorDocument struct {
	Error  string `json:"error"`
	Target string `json:"target"`
}

func buildDocument(groups []mbean.MetricGroup) []metricDocument {
	doc := make([]metricDocument, 0, len(groups))
	for _, g := range groups {
		samples := make([]sampleDocument, len(g.Samples))
		for i, s := range g.Samples {
			samples[i] = sampleDocument{Value: sampleValue(s.Value), Labels: s.Labels}
		}
		doc = append(doc, metricDocument{
			Docstring:  g.Docstring,
			BaseLabels: map[string]string{"__name__": string(g.Name)},
			Metric:     metricBody{Type: g.Type, Value: samples},
		})
	}
	return doc
}

func writeDocument(w http.ResponseWriter, groups []mbean.MetricGroup) {
	writeJSON(w, buildDocument(groups))
}

// writeErrorDocument answers with status 200 and a single error element, so
// scrapers that only parse the body still see the failure.
func writeErrorDocument(w http.ResponseWriter, target string, err error) {
	msg := err.Error()
	if msg == "" {
		msg = "unknown error"
	}
	writeJSON(w, []errorDocument{{Error: msg, Target: target}})
}

func writeJSON(w http.ResponseWriter, body any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		log.Printf("Reporter: failed to encode document: %v", err)
		http.Error(w, "Failed to encode metrics to JSON", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

package http_middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fllarpy/mbean-bridge/infrastructure/storage/inmemory"
	"github.com/fllarpy/mbean-bridge/pkg/config"
)

func TestStatsMiddleware(t *testing.T) {
	t.Run("Stats Enabled", func(t *testing.T) {
		testCases := []struct {
			name               string
			statusCode         int
			expected2xx        uint64
			expected4xx        uint64
			expected5xx        uint64
			expectedErrorCount int
		}{
			{"OK", http.StatusOK, 1, 0, 0, 0},
			{"Not Found", http.StatusNotFound, 0, 1, 0, 0},
			{"Internal Server Error", http.StatusInternalServerError, 0, 0, 1, 1},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				// Setup
				store := inmemory.NewStore()
				requestPath := "/metrics"
				testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tc.statusCode)
				})
				middleware := StatsMiddleware(store, &config.Config{Enabled: true})
				wrappedHandler := middleware(testHandler)

				// Execution
				req := httptest.NewRequest("GET", requestPath+"?target=db01:9999", nil)
				rr := httptest.NewRecorder()
				wrappedHandler.ServeHTTP(rr, req)

				// Verification
				snapshot := store.GetSnapshot()
				require.Contains(t, snapshot.Endpoints, requestPath, "metrics should be recorded for the correct path")

				endpointMetrics := snapshot.Endpoints[requestPath]
				assert.Equal(t, uint64(1), endpointMetrics.TotalRequests, "TotalRequests should be 1")
				assert.Equal(t, tc.expected2xx, endpointMetrics.Status2xx, "2xx status codes should match")
				assert.Equal(t, tc.expected4xx, endpointMetrics.Status4xx, "4xx status codes should match")
				assert.Equal(t, tc.expected5xx, endpointMetrics.Status5xx, "5xx status codes should match")
				require.Len(t, snapshot.Errors, tc.expectedErrorCount, "error count should match")
				if tc.expectedErrorCount > 0 {
					assert.Equal(t, "db01:9999", snapshot.Errors[0].Target)
					assert.Equal(t, "Internal Server Error", snapshot.Errors[0].Error)
				}
			})
		}
	})

	t.Run("Stats Disabled", func(t *testing.T) {
		t.Setenv("BRIDGE_STATS_ENABLED", "false")

		// Setup
		store := inmemory.NewStore()
		testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		middleware := StatsMiddleware(store, nil)
		wrappedHandler := middleware(testHandler)

		// Execution
		req := httptest.NewRequest("GET", "/test", nil)
		rr := httptest.NewRecorder()
		wrappedHandler.ServeHTTP(rr, req)

		// Verification
		snapshot := store.GetSnapshot()
		assert.Empty(t, snapshot.Endpoints, "no request statistics should be recorded when disabled")
		assert.Empty(t, snapshot.Errors, "no errors should be recorded when disabled")
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

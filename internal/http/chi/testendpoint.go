package chi

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// testErrorCodes are the statuses fail=true picks from at random
var testErrorCodes = []int{400, 401, 403, 404, 500, 502, 503}

type testEndpointResponse struct {
	Message  string `json:"message"`
	Received struct {
		Method    string            `json:"method"`
		Headers   map[string]string `json:"headers"`
		Body      json.RawMessage   `json:"body"`
		Timestamp time.Time         `json:"timestamp"`
	} `json:"received"`
	TestParams struct {
		ForcedStatus *int `json:"forcedStatus"`
		Delay        *int `json:"delay"`
		ShouldFail   bool `json:"shouldFail"`
	} `json:"testParams"`
}

/* testEndpoint is a configurable sink for exercising replays without an
 * external receiver. Query params shape the response:
 *   status=N     respond with N (100-599)
 *   delay=MS     wait before responding
 *   fail=true    respond with a random client or server error
 * The echo redacts credentials so captured replays can be shared.
 */
func testEndpoint() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		var body json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !json.Valid(body) {
			body = json.RawMessage(`{"error":"Could not parse JSON body"}`)
		}

		var delay *int
		if raw := query.Get("delay"); raw != "" {
			if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
				delay = &ms
				select {
				case <-time.After(time.Duration(ms) * time.Millisecond):
				case <-r.Context().Done():
					return
				}
			}
		}

		status := http.StatusOK
		var forced *int
		shouldFail := query.Get("fail") == "true"

		if raw := query.Get("status"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 100 && parsed < 600 {
				status = parsed
				forced = &parsed
			}
		} else if shouldFail {
			status = testErrorCodes[rand.Intn(len(testErrorCodes))]
		}

		headers := make(map[string]string, len(r.Header))
		for key, values := range r.Header {
			if len(values) == 0 {
				continue
			}
			switch http.CanonicalHeaderKey(key) {
			case "Authorization", "Cookie":
				headers[key] = "[REDACTED]"
			default:
				headers[key] = values[0]
			}
		}

		resp := testEndpointResponse{Message: "Test endpoint response"}
		resp.Received.Method = r.Method
		resp.Received.Headers = headers
		resp.Received.Body = body
		resp.Received.Timestamp = time.Now()
		resp.TestParams.ForcedStatus = forced
		resp.TestParams.Delay = delay
		resp.TestParams.ShouldFail = shouldFail

		respondJSON(w, status, resp)
	}
}

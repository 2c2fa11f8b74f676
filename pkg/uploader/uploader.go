package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/edgeflux/tempagent/pkg/clock"
	"github.com/edgeflux/tempagent/pkg/metrics"
)

// maxLoggedBody caps how much of a response body we echo into the log.
const maxLoggedBody = 1024

var (
	// uploadCounter is a prometheus counter recording upload attempts,
	// labelled by outcome.
	uploadCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tempagent",
			Subsystem: "uploader",
			Name:      "uploads",
			Help:      "Count of HTTP upload attempts by outcome",
		}, []string{"outcome"},
	)

	// uploadHistogram is a prometheus histogram recording upload request
	// durations. We use the default bucket distributions.
	uploadHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tempagent",
			Subsystem: "uploader",
			Name:      "upload_duration_seconds",
			Help:      "Upload request duration distribution",
		},
	)
)

func init() {
	metrics.MustRegister(uploadCounter)
	metrics.MustRegister(uploadHistogram)
}

// Uploader is the interface the agent loop uploads readings through. Upload
// reports success as a plain boolean; all failure causes are treated
// uniformly and nothing escapes the call.
type Uploader interface {
	Upload(ctx context.Context, celsius float64) bool
}

// Config carries the uploader's endpoint and identity settings.
type Config struct {
	// Endpoint is the URL readings are POSTed to.
	Endpoint string

	// APIKey, when non-empty, is sent as a bearer token.
	APIKey string

	// DeviceID identifies this device in the payload. Defaults to
	// DefaultDeviceID when empty.
	DeviceID string
}

// HTTPUploader posts JSON payloads to a configured endpoint. The HTTP client
// and clock are injected so responses and timestamps can be controlled in
// tests.
type HTTPUploader struct {
	endpoint string
	apiKey   string
	deviceID string
	client   *http.Client
	clock    clock.Clock
	logger   kitlog.Logger
}

// ensure we adhere to the interface
var _ Uploader = &HTTPUploader{}

// NewHTTPUploader returns an HTTPUploader ready for use.
func NewHTTPUploader(config *Config, client *http.Client, cl clock.Clock, logger kitlog.Logger) *HTTPUploader {
	logger = kitlog.With(logger, "module", "uploader")

	deviceID := config.DeviceID
	if deviceID == "" {
		deviceID = DefaultDeviceID
	}

	logger.Log("endpoint", config.Endpoint, "deviceID", deviceID, "msg", "creating uploader")

	return &HTTPUploader{
		endpoint: config.Endpoint,
		apiKey:   config.APIKey,
		deviceID: deviceID,
		client:   client,
		clock:    cl,
		logger:   logger,
	}
}

// Upload builds a payload from the reading and performs a single synchronous
// POST. Success is strictly an HTTP 200; any other status or any transport
// error is logged and reported as false. The response body is always drained
// and closed.
func (u *HTTPUploader) Upload(ctx context.Context, celsius float64) bool {
	payload := NewPayload(celsius, u.clock.Now(), u.deviceID)

	body, err := json.Marshal(payload)
	if err != nil {
		u.logger.Log("err", err, "msg", "failed to marshal payload")
		uploadCounter.WithLabelValues("failure").Inc()
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, bytes.NewReader(body))
	if err != nil {
		u.logger.Log("err", err, "msg", "failed to build request")
		uploadCounter.WithLabelValues("failure").Inc()
		return false
	}

	req.Header.Set("Content-Type", "application/json")
	if u.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.apiKey)
	}

	start := time.Now()

	resp, err := u.client.Do(req)
	if err != nil {
		u.logger.Log("err", err, "msg", "upload request failed")
		uploadCounter.WithLabelValues("failure").Inc()
		return false
	}
	defer resp.Body.Close()

	uploadHistogram.Observe(time.Since(start).Seconds())

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	if err != nil {
		respBody = []byte("(unreadable)")
	}

	u.logger.Log("status", resp.StatusCode, "body", string(respBody), "msg", "upload response")

	if resp.StatusCode != http.StatusOK {
		uploadCounter.WithLabelValues("failure").Inc()
		return false
	}

	uploadCounter.WithLabelValues("success").Inc()

	return true
}

package tracking

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// Meter name for client metrics instrumentation
	clientMeterName = "go-tdclient/httpclient"

	// Metric names following OpenTelemetry HTTP client semantic conventions
	metricAttemptDuration = "http.client.request.duration" // Histogram in seconds

	// Client-specific metrics
	metricRetries     = "tdclient.retries"      // Counter of backoff sleeps
	metricRetryDelay  = "tdclient.retry.delay"  // Histogram of sleep durations in seconds
	metricFatalErrors = "tdclient.fatal_errors" // Counter of requests ending in a fatal error

	// Attribute keys per OTel semantic conventions
	attrHTTPMethod   = "http.request.method"
	attrHTTPStatus   = "http.response.status_code"
	attrServerHost   = "server.address"
	attrErrorType    = "error.type"
	attrRequestVerb  = "tdclient.verb"
	attrRetryReason  = "tdclient.retry.reason"
	attrAttemptIndex = "tdclient.attempt"
)

var (
	// Singleton meter initialization
	clientMeter   metric.Meter
	meterOnce     sync.Once
	meterInitMu   sync.Mutex
	metricsInited bool

	// Metric instruments
	attemptDuration  metric.Float64Histogram
	retryCounter     metric.Int64Counter
	retryDelay       metric.Float64Histogram
	fatalErrorsCount metric.Int64Counter
)

// logMetricError logs a metric initialization error to stderr.
func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize client metric %s: %v\n", metricName, err)
	}
}

func initClientMeter() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	if clientMeter != nil {
		return
	}

	clientMeter = otel.Meter(clientMeterName)

	var err error

	attemptDuration, err = clientMeter.Float64Histogram(
		metricAttemptDuration,
		metric.WithDescription("Duration of individual HTTP attempts"),
		metric.WithUnit("s"),
	)
	logMetricError(metricAttemptDuration, err)

	retryCounter, err = clientMeter.Int64Counter(
		metricRetries,
		metric.WithDescription("Number of retries scheduled after a transient failure"),
		metric.WithUnit("{retry}"),
	)
	logMetricError(metricRetries, err)

	retryDelay, err = clientMeter.Float64Histogram(
		metricRetryDelay,
		metric.WithDescription("Backoff sleep before a retry"),
		metric.WithUnit("s"),
	)
	logMetricError(metricRetryDelay, err)

	fatalErrorsCount, err = clientMeter.Int64Counter(
		metricFatalErrors,
		metric.WithDescription("Number of requests that ended in a fatal error"),
		metric.WithUnit("{request}"),
	)
	logMetricError(metricFatalErrors, err)

	metricsInited = true
}

func ensureClientMeterInitialized() {
	meterOnce.Do(initClientMeter)
}

// Attempt describes one transport send for metric recording.
type Attempt struct {
	Method   string
	Verb     string
	Host     string
	Index    int
	Status   int
	Duration time.Duration
	Err      error
}

// RecordAttempt records the duration of a single transport attempt.
func RecordAttempt(ctx context.Context, a Attempt) {
	ensureClientMeterInitialized()

	if attemptDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrHTTPMethod, a.Method),
		attribute.String(attrRequestVerb, a.Verb),
		attribute.Int(attrAttemptIndex, a.Index),
	}
	if a.Host != "" {
		attrs = append(attrs, attribute.String(attrServerHost, a.Host))
	}
	if a.Status > 0 {
		attrs = append(attrs, attribute.Int(attrHTTPStatus, a.Status))
	}
	if a.Err != nil {
		attrs = append(attrs, attribute.String(attrErrorType, ClassifyError(a.Err)))
	} else if a.Status >= 500 {
		attrs = append(attrs, attribute.String(attrErrorType, strconv.Itoa(a.Status)))
	}

	attemptDuration.Record(ctx, a.Duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordRetry records a scheduled backoff sleep and why it happened.
func RecordRetry(ctx context.Context, verb, reason string, delay time.Duration) {
	ensureClientMeterInitialized()

	attrs := metric.WithAttributes(
		attribute.String(attrRequestVerb, verb),
		attribute.String(attrRetryReason, reason),
	)

	if retryCounter != nil {
		retryCounter.Add(ctx, 1, attrs)
	}
	if retryDelay != nil {
		retryDelay.Record(ctx, delay.Seconds(), attrs)
	}
}

// RecordFatal records a request that ended in a fatal error.
func RecordFatal(ctx context.Context, verb string, status int) {
	ensureClientMeterInitialized()

	if fatalErrorsCount == nil {
		return
	}

	attrs := []attribute.KeyValue{attribute.String(attrRequestVerb, verb)}
	if status > 0 {
		attrs = append(attrs, attribute.Int(attrHTTPStatus, status))
	}
	fatalErrorsCount.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// IsInitialized returns true if client metrics have been initialized.
func IsInitialized() bool {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()
	return metricsInited
}

// ResetForTesting resets the metric state for testing purposes.
func ResetForTesting() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	clientMeter = nil
	attemptDuration = nil
	retryCounter = nil
	retryDelay = nil
	fatalErrorsCount = nil
	metricsInited = false
	meterOnce = sync.Once{}
}

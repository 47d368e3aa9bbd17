package fetch

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

// Add Prometheus metrics
var (
	fetchAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pharchive_fetch_attempts_total",
		Help: "The total number of fetch attempts made against feed URLs",
	})

	fetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pharchive_fetch_retries_total",
		Help: "The total number of fetch attempts that were retried",
	})

	fetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pharchive_fetch_failures_total",
		Help: "The total number of fetches that failed definitively",
	})
)

const (
	// Mobile Safari user agent; some feed endpoints refuse generic clients.
	userAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_6_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.6 Mobile/15E148 Safari/604.1 OPT/5.0.5"

	requestTimeout = 10 * time.Second
	maxRetries     = 3
	backoffFactor  = 2
)

// Statuses worth retrying; anything else non-200 fails immediately.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Fetcher performs single GET requests with a bounded retry policy.
// Sleeps between attempts block only the calling goroutine.
type Fetcher struct {
	Client     *http.Client
	MaxRetries int
	Sleep      func(time.Duration)
}

func New() *Fetcher {
	return &Fetcher{
		Client:     &http.Client{Timeout: requestTimeout},
		MaxRetries: maxRetries,
		Sleep:      time.Sleep,
	}
}

// Fetch GETs url and returns the response body. HTTP 200 succeeds;
// 429/500/502/503/504 and transport errors are retried with exponential
// backoff up to MaxRetries attempts; any other status fails immediately.
func (f *Fetcher) Fetch(url string) (string, error) {
	// Set up exponential backoff for retry attempts
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = backoffFactor * time.Second
	bo.Multiplier = backoffFactor
	bo.RandomizationFactor = 0
	bo.MaxInterval = 60 * time.Second
	bo.MaxElapsedTime = 0

	for attempt := 1; attempt <= f.MaxRetries; attempt++ {
		fetchAttempts.Inc()

		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			fetchFailures.Inc()
			return "", fmt.Errorf("failed to build request for %s: %w", url, err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := f.Client.Do(req)
		if err != nil {
			log.Errorf("Request error during fetch for %s (attempt %d/%d): %v", url, attempt, f.MaxRetries, err)
			fetchRetries.Inc()
			f.Sleep(bo.NextBackOff())
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				log.Errorf("Error reading response body for %s (attempt %d/%d): %v", url, attempt, f.MaxRetries, readErr)
				fetchRetries.Inc()
				f.Sleep(bo.NextBackOff())
				continue
			}
			// An empty 200 body carries no feed; count it as a failed fetch.
			if len(body) == 0 {
				log.Errorf("Empty response body for %s", url)
				fetchFailures.Inc()
				return "", fmt.Errorf("empty response body from %s", url)
			}
			return string(body), nil
		case retryableStatus[resp.StatusCode]:
			log.Warnf("Retrying %s due to status %d (attempt %d/%d)", url, resp.StatusCode, attempt, f.MaxRetries)
			fetchRetries.Inc()
			f.Sleep(bo.NextBackOff())
		default:
			log.Errorf("Non-retryable error %d for %s", resp.StatusCode, url)
			fetchFailures.Inc()
			return "", fmt.Errorf("non-retryable status %d for %s", resp.StatusCode, url)
		}
	}

	fetchFailures.Inc()
	return "", fmt.Errorf("failed to fetch %s after %d attempts", url, f.MaxRetries)
}

package parser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"

	"PaperScanner/internal/domain"
)

const userAgent = "PaperScanner/1.0 (+https://arxiv.org/help/api)"

var versionSuffix = regexp.MustCompile(`v\d+$`)

// StatusError carries a non-200 upstream answer.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %s", e.URL, e.Status)
}

// get performs a GET and hands back the open body; callers close it.
func get(ctx context.Context, client *http.Client, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, classify(fmt.Errorf("request %s: %w", target, err))
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, classify(&StatusError{URL: target, StatusCode: resp.StatusCode, Status: resp.Status})
	}
	return resp, nil
}

// classify marks errors worth retrying with domain.ErrTemporary.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return domain.WrapError(domain.ErrTemporary, "arxiv", err)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.WrapError(domain.ErrTemporary, "arxiv", err)
	}
	return err
}

// shortID turns "http://arxiv.org/abs/2501.00001v2" or "arXiv:2501.00001" into "2501.00001".
func shortID(raw string) string {
	id := strings.TrimSpace(raw)
	if i := strings.LastIndex(id, "/abs/"); i >= 0 {
		id = id[i+len("/abs/"):]
	}
	id = strings.TrimPrefix(id, "arXiv:")
	return versionSuffix.ReplaceAllString(id, "")
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Package horosafe holds the input guards shared by the archive client and
// the configuration layer: URL scheme checks and bounded body reads.
package horosafe

import (
	"errors"
	"fmt"
	"io"
	"net/url"
)

var (
	// ErrUnsafeScheme is returned for URLs that are not http or https.
	ErrUnsafeScheme = errors.New("horosafe: scheme must be http or https")
	// ErrNoHost is returned for URLs without a host.
	ErrNoHost = errors.New("horosafe: url has no host")
	// ErrTooLarge is returned when a body exceeds its read limit.
	ErrTooLarge = errors.New("horosafe: body too large")
)

// CheckURL parses rawURL and requires an http(s) scheme and a host.
func CheckURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("horosafe: parse %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsafeScheme, rawURL)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q", ErrNoHost, rawURL)
	}
	return u, nil
}

// LimitedReadAll reads at most maxBytes from r. A longer input fails with
// ErrTooLarge instead of being cut short.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const MaxNameLen = 30

var (
	ErrBadURL       = errors.New("not a valid URL")
	ErrProbeTimeout = errors.New("resource did not respond in time")
	ErrWrongType    = errors.New("resource has the wrong content type")
	ErrImageType    = errors.New("accepted image types are .png, .jpg, .jpeg, .gif and .webp")
)

var (
	forbiddenChars = regexp.MustCompile(`[\[\]\(\)"'{}]`)

	gdriveFile = regexp.MustCompile(`^https://drive\.google\.com/file/d/(.*)/.*$`)
	gdriveOpen = regexp.MustCompile(`^https://drive\.google\.com/open\?id=(.*)&usp=drive_copy$`)
	dropboxDL  = regexp.MustCompile(`^(https://www\.dropbox\.com/scl/fi/.*)&dl=0$`)
	dropboxRaw = regexp.MustCompile(`^https://www\.dropbox\.com/scl/fi/.*&raw=1$`)

	imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}
)

// validName returns the code for a name that cannot be stored, or Success.
func validName(name string) Code {
	if forbiddenChars.MatchString(name) {
		return BadName
	}
	if utf8.RuneCountInString(name) > MaxNameLen {
		return NameTooLong
	}
	return Success
}

// NormalizeURL rewrites share links of known hosts to their raw download form.
func NormalizeURL(raw string) string {
	if m := gdriveFile.FindStringSubmatch(raw); m != nil {
		return "http://docs.google.com/uc?export=open&id=" + m[1]
	}
	if m := gdriveOpen.FindStringSubmatch(raw); m != nil {
		return "http://docs.google.com/uc?export=open&id=" + m[1]
	}
	if m := dropboxDL.FindStringSubmatch(raw); m != nil {
		return m[1] + "&raw=1"
	}
	return raw
}

func isDropboxRaw(u string) bool { return dropboxRaw.MatchString(u) }

// Prober checks that a URL serves a resource of the given media type ("audio", "image").
type Prober interface {
	Probe(ctx context.Context, rawURL, mediaType string) error
}

// HTTPProber issues a HEAD request and inspects the Content-Type prefix.
type HTTPProber struct {
	Client  *http.Client
	Timeout time.Duration
}

func NewHTTPProber(timeout time.Duration) *HTTPProber {
	return &HTTPProber{Client: &http.Client{}, Timeout: timeout}
}

func (p *HTTPProber) Probe(ctx context.Context, rawURL, mediaType string) error {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrBadURL
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err != nil {
		return ErrBadURL
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := p.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrProbeTimeout
		}
		return fmt.Errorf("%w: %v", ErrWrongType, err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrWrongType, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, mediaType) {
		return fmt.Errorf("%w: %q", ErrWrongType, ct)
	}
	return nil
}

func imageExtension(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ErrBadURL
	}
	if !imageExts[strings.ToLower(path.Ext(u.Path))] {
		return ErrImageType
	}
	return nil
}

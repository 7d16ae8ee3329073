// Package drop turns text dropped onto the editor from other applications
// into imports.
//
// A drop payload is newline-delimited text, as produced for text/uri-list
// or plain-text drags. Only the first URL is used. Payloads that do not
// carry an acceptable URL are logged and dropped without surfacing an
// error to the user.
package drop

import (
	"bufio"
	"log/slog"
	"net/url"
	"strings"

	serrors "github.com/meow-stack/meow-studio/internal/errors"
)

// Acceptor validates drop payloads.
type Acceptor struct {
	schemes map[string]bool
	logger  *slog.Logger
}

// NewAcceptor creates an acceptor for URLs with one of schemes.
func NewAcceptor(schemes []string, logger *slog.Logger) *Acceptor {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Acceptor{
		schemes: make(map[string]bool, len(schemes)),
		logger:  logger.With("component", "drop"),
	}
	for _, s := range schemes {
		a.schemes[strings.ToLower(s)] = true
	}
	return a
}

// Accept returns the URL carried by payload. Invalid payloads are logged
// at warn level and reported as not accepted.
func (a *Acceptor) Accept(payload string) (*url.URL, bool) {
	u, err := a.Parse(payload)
	if err != nil {
		a.logger.Warn("ignoring dropped payload", "error", err)
		return nil, false
	}
	return u, true
}

// Parse is Accept without the logging: it returns a DropInvalidURL error
// describing why payload is not acceptable.
func (a *Acceptor) Parse(payload string) (*url.URL, error) {
	line := firstLine(payload)
	if line == "" {
		return nil, serrors.DropInvalidURL(payload, "empty payload")
	}

	u, err := url.Parse(line)
	if err != nil {
		return nil, serrors.DropInvalidURL(line, err.Error())
	}
	if !u.IsAbs() {
		return nil, serrors.DropInvalidURL(line, "not an absolute URL")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if !a.schemes[u.Scheme] {
		return nil, serrors.DropInvalidURL(line, "scheme "+u.Scheme+" is not accepted")
	}

	switch u.Scheme {
	case "file":
		if u.Path == "" {
			return nil, serrors.DropInvalidURL(line, "file URL has no path")
		}
		if u.Host != "" && u.Host != "localhost" {
			return nil, serrors.DropInvalidURL(line, "file URL names a remote host")
		}
	case "http", "https":
		if u.Host == "" {
			return nil, serrors.DropInvalidURL(line, "URL has no host")
		}
	}
	return u, nil
}

// firstLine returns the first line that is neither blank nor a
// text/uri-list comment.
func firstLine(payload string) string {
	sc := bufio.NewScanner(strings.NewReader(payload))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line
	}
	return ""
}

package aiseg

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// defaultRealm is what the appliance means when it omits the realm parameter
// from its challenge.
const defaultRealm = "AiSEG"

// Transport issues HTTP requests against the appliance, transparently
// completing the RFC 2617 Digest challenge/response the appliance answers a
// bare request with. Bodies are byte slices so the single authenticated
// retry can replay them.
type Transport struct {
	base     string
	username string
	password string
	client   *http.Client
}

// NewTransport builds a transport for the appliance at base
// (e.g. "http://192.168.0.216").
func NewTransport(base, username, password string, timeout time.Duration) *Transport {
	return &Transport{
		base:     strings.TrimRight(base, "/"),
		username: username,
		password: password,
		client:   &http.Client{Timeout: timeout},
	}
}

// Do issues method against path (path carries any query string) and returns
// the response. A 401 triggers exactly one digest-authenticated retry; a
// second 401 is returned as-is for the caller to inspect rather than
// converted into an error.
func (t *Transport) Do(ctx context.Context, method, path string, body []byte, contentType string) (*http.Response, error) {
	resp, err := t.send(ctx, method, path, body, contentType, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	ch := parseChallenge(resp.Header.Get("WWW-Authenticate"))
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	return t.send(ctx, method, path, body, contentType, t.authorization(method, path, ch))
}

func (t *Transport) send(ctx context.Context, method, path string, body []byte, contentType, authz string) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.base+path, rd)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	return t.client.Do(req)
}

// challenge is the transient parse of one WWW-Authenticate header. It lives
// for a single request/response exchange.
type challenge struct {
	realm  string
	nonce  string
	opaque string
	qop    string
}

var challengeParamRe = regexp.MustCompile(`(\w+)=(?:"([^"]*)"|([^\s,]+))`)

// parseChallenge pulls realm/nonce/opaque/qop out of a WWW-Authenticate
// header. Realm falls back to the appliance default; a missing nonce stays
// empty and degrades to an invalid digest, which is the appliance's
// contract rather than ours.
func parseChallenge(header string) challenge {
	ch := challenge{realm: defaultRealm}
	header = strings.TrimPrefix(strings.TrimSpace(header), "Digest ")
	for _, m := range challengeParamRe.FindAllStringSubmatch(header, -1) {
		val := m[2]
		if val == "" {
			val = m[3]
		}
		switch strings.ToLower(m[1]) {
		case "realm":
			ch.realm = val
		case "nonce":
			ch.nonce = val
		case "opaque":
			ch.opaque = val
		case "qop":
			ch.qop = val
		}
	}
	return ch
}

// authorization computes the Authorization header for one retry. The uri=
// parameter must be byte-identical to the request path including the query
// string or the appliance rejects the digest.
func (t *Transport) authorization(method, uri string, ch challenge) string {
	ha1 := md5hex(t.username + ":" + ch.realm + ":" + t.password)
	ha2 := md5hex(method + ":" + uri)

	params := []string{
		`username="` + t.username + `"`,
		`realm="` + ch.realm + `"`,
		`nonce="` + ch.nonce + `"`,
		`uri="` + uri + `"`,
	}

	var response string
	if ch.qop == "auth" {
		// One retry per request, so a constant nonce count is accepted by
		// the appliance.
		const nc = "00000001"
		cnonce := newCnonce()
		response = md5hex(strings.Join([]string{ha1, ch.nonce, nc, cnonce, "auth", ha2}, ":"))
		params = append(params, `qop=auth`, `nc=`+nc, `cnonce="`+cnonce+`"`)
	} else {
		response = md5hex(ha1 + ":" + ch.nonce + ":" + ha2)
	}

	params = append(params, `response="`+response+`"`)
	if ch.opaque != "" {
		params = append(params, `opaque="`+ch.opaque+`"`)
	}
	return "Digest " + strings.Join(params, ", ")
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func newCnonce() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is effectively unreachable; fall back to a
		// fixed value rather than panicking mid-request.
		return "0000000000000000"
	}
	return hex.EncodeToString(b)
}

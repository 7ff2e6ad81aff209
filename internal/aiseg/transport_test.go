package aiseg

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// authParams splits a Digest Authorization header into its parameters.
func authParams(t *testing.T, header string) map[string]string {
	t.Helper()
	if !strings.HasPrefix(header, "Digest ") {
		t.Fatalf("not a digest header: %q", header)
	}
	out := map[string]string{}
	for _, m := range challengeParamRe.FindAllStringSubmatch(header, -1) {
		val := m[2]
		if val == "" {
			val = m[3]
		}
		out[m[1]] = val
	}
	return out
}

func TestTransport_QopAuthDigest(t *testing.T) {
	const (
		user   = "aiseg"
		pass   = "hunter2"
		nonce  = "dcd98b7102dd2f0e"
		opaque = "5ccc069c403ebaf9"
		path   = "/page/graph/584?data=eyJjIjoiMzAifQ=="
	)

	var (
		calls int
		authz string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.URL.RequestURI(); got != path {
			t.Errorf("request uri = %q, want %q", got, path)
		}
		if r.Header.Get("Authorization") == "" {
			w.Header().Set("WWW-Authenticate",
				`Digest realm="AiSEG", nonce="`+nonce+`", qop="auth", opaque="`+opaque+`"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		authz = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewTransport(srv.URL, user, pass, 2*time.Second)
	resp, err := tr.Do(context.Background(), http.MethodGet, path, nil, "")
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if calls != 2 {
		t.Fatalf("upstream calls = %d, want 2", calls)
	}

	p := authParams(t, authz)
	if p["username"] != user || p["realm"] != "AiSEG" || p["nonce"] != nonce {
		t.Fatalf("identity params wrong: %v", p)
	}
	// uri must be byte-identical to path+query.
	if p["uri"] != path {
		t.Fatalf("uri = %q, want %q", p["uri"], path)
	}
	if p["nc"] != "00000001" || p["qop"] != "auth" {
		t.Fatalf("qop params wrong: %v", p)
	}
	if p["opaque"] != opaque {
		t.Fatalf("opaque = %q, want %q", p["opaque"], opaque)
	}

	// Recompute the reference digest with the cnonce the client chose.
	ha1 := md5hex(user + ":AiSEG:" + pass)
	ha2 := md5hex("GET:" + path)
	want := md5hex(strings.Join([]string{ha1, nonce, "00000001", p["cnonce"], "auth", ha2}, ":"))
	if p["response"] != want {
		t.Fatalf("response digest = %q, want %q", p["response"], want)
	}
}

func TestTransport_LegacyDigestNoQop(t *testing.T) {
	const (
		user  = "aiseg"
		pass  = "secret"
		nonce = "abc123"
		path  = "/page/electricflow/111"
	)

	var authz string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			// No realm either: the client must fall back to "AiSEG".
			w.Header().Set("WWW-Authenticate", `Digest nonce="`+nonce+`"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		authz = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewTransport(srv.URL, user, pass, 2*time.Second)
	resp, err := tr.Do(context.Background(), http.MethodPost, path, []byte(`{}`), contentTypeJSON)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	p := authParams(t, authz)
	if p["realm"] != defaultRealm {
		t.Fatalf("realm = %q, want default %q", p["realm"], defaultRealm)
	}
	ha1 := md5hex(user + ":" + defaultRealm + ":" + pass)
	ha2 := md5hex("POST:" + path)
	if want := md5hex(ha1 + ":" + nonce + ":" + ha2); p["response"] != want {
		t.Fatalf("response digest = %q, want %q", p["response"], want)
	}
	if _, ok := p["cnonce"]; ok {
		t.Fatalf("cnonce sent without qop: %v", p)
	}
}

func TestTransport_BodyReplayedOnRetry(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b := make([]byte, 64)
		n, _ := r.Body.Read(b)
		bodies = append(bodies, string(b[:n]))
		if r.Header.Get("Authorization") == "" {
			w.Header().Set("WWW-Authenticate", `Digest realm="AiSEG", nonce="n1"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewTransport(srv.URL, "u", "p", 2*time.Second)
	resp, err := tr.Do(context.Background(), http.MethodPost, "/page/devices/info", []byte(`{"token":"1"}`), contentTypeJSON)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if len(bodies) != 2 || bodies[0] != bodies[1] || bodies[0] != `{"token":"1"}` {
		t.Fatalf("body not replayed intact: %q", bodies)
	}
}

func TestTransport_SecondUnauthorizedReturnedAsIs(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("WWW-Authenticate", `Digest realm="AiSEG", nonce="n1"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tr := NewTransport(srv.URL, "u", "wrong", 2*time.Second)
	resp, err := tr.Do(context.Background(), http.MethodGet, "/page/graph/51111", nil, "")
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	// Exactly one retry; the second 401 is the caller's to inspect.
	if calls != 2 {
		t.Fatalf("upstream calls = %d, want 2", calls)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestTransport_NoChallengePassThrough(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tr := NewTransport(srv.URL, "u", "p", 2*time.Second)
	resp, err := tr.Do(context.Background(), http.MethodGet, "/nope", nil, "")
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if calls != 1 {
		t.Fatalf("upstream calls = %d, want 1 (no retry without 401)", calls)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestParseChallenge_Defaults(t *testing.T) {
	ch := parseChallenge("")
	if ch.realm != defaultRealm {
		t.Fatalf("realm = %q, want %q", ch.realm, defaultRealm)
	}
	if ch.nonce != "" {
		t.Fatalf("nonce = %q, want empty", ch.nonce)
	}

	ch = parseChallenge(`Digest realm="AiSEG Custom", nonce="n", qop="auth", opaque="o"`)
	if ch.realm != "AiSEG Custom" || ch.nonce != "n" || ch.qop != "auth" || ch.opaque != "o" {
		t.Fatalf("unexpected parse: %+v", ch)
	}
}

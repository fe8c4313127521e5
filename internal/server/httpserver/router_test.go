package httpserver

import (
	"archive/zip"
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/transformerlab/nebula-tower/internal/core/domain"
	"github.com/transformerlab/nebula-tower/internal/core/service"
	"github.com/transformerlab/nebula-tower/internal/mesh"
	"github.com/transformerlab/nebula-tower/internal/storage/memory"
	"github.com/transformerlab/nebula-tower/internal/telemetry/metric"
)

const testAdminToken = "tower-admin-token"

// newTestRouter wires the full stack against the in-memory store.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	store := memory.New()

	authority := service.NewAuthorityService(store, &service.AuthorityServiceConfig{
		Passphrase: "correct horse battery",
	})
	orgs, err := service.NewOrganizationService(store, nil)
	if err != nil {
		t.Fatalf("NewOrganizationService: %v", err)
	}

	bundler, err := mesh.NewBundler(mesh.Config{
		LighthouseAddr: "fd42:9e1a:27cd::1",
		ExternalAddr:   "203.0.113.10",
	})
	if err != nil {
		t.Fatalf("NewBundler: %v", err)
	}

	hosts := service.NewHostService(store, orgs, authority, bundler)
	invites := service.NewInviteService(store, orgs, hosts)

	return NewRouter(&RouterConfig{
		Authority:           authority,
		Organizations:       orgs,
		Hosts:               hosts,
		Invites:             invites,
		Renderer:            bundler,
		Metrics:             metric.NewRegistry(),
		Logger:              discardLogger(),
		AdminToken:          testAdminToken,
		EnrollRatePerMinute: 60,
		EnrollBurst:         30,
	})
}

type envelope struct {
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

// doJSON issues a request against the test server and decodes the envelope.
func doJSON(t *testing.T, srv *httptest.Server, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("%s %s: decode envelope: %v", method, path, err)
	}
	return resp.StatusCode, env
}

func unmarshalData(t *testing.T, env envelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
}

func TestRouter_AuthRequired(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t))
	defer srv.Close()

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/ca"},
		{http.MethodGet, "/api/orgs"},
		{http.MethodGet, "/api/hosts"},
		{http.MethodGet, "/api/invites"},
	}

	for _, p := range paths {
		status, env := doJSON(t, srv, p.method, p.path, "", nil)
		if status != http.StatusUnauthorized {
			t.Errorf("%s %s without token: status = %d, want 401", p.method, p.path, status)
		}
		if !strings.HasSuffix(env.Code, "-4010") {
			t.Errorf("%s %s: code = %q, want -4010 suffix", p.method, p.path, env.Code)
		}
	}

	// Wrong token is rejected the same way.
	status, _ := doJSON(t, srv, http.MethodGet, "/api/orgs", "wrong-token", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", status)
	}
}

func TestRouter_HealthOpen(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t))
	defer srv.Close()

	status, env := doJSON(t, srv, http.MethodGet, "/health", "", nil)
	if status != http.StatusOK {
		t.Fatalf("/health: status = %d, want 200", status)
	}
	if env.Code != "OK" {
		t.Errorf("/health: code = %q, want OK", env.Code)
	}
	if !strings.HasPrefix(env.RequestID, "req-") {
		t.Errorf("/health: request_id = %q, want req- prefix", env.RequestID)
	}

	status, _ = doJSON(t, srv, http.MethodGet, "/ready", "", nil)
	if status != http.StatusOK {
		t.Errorf("/ready: status = %d, want 200", status)
	}
}

// TestRouter_CAInfoBeforeCreation pins the split between the two CA info
// routes: /api/ca answers 200 with exists=false while /api/ca/info treats
// a missing CA as not found.
func TestRouter_CAInfoBeforeCreation(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t))
	defer srv.Close()

	status, env := doJSON(t, srv, http.MethodGet, "/api/ca", testAdminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("GET /api/ca: status = %d, want 200", status)
	}
	var caInfo struct {
		Exists bool `json:"exists"`
	}
	unmarshalData(t, env, &caInfo)
	if caInfo.Exists {
		t.Fatal("CA should not exist yet")
	}

	status, env = doJSON(t, srv, http.MethodGet, "/api/ca/info", testAdminToken, nil)
	if status != http.StatusNotFound {
		t.Fatalf("GET /api/ca/info: status = %d, want 404", status)
	}
	if env.Code != domain.ErrCANotFound.Code {
		t.Errorf("GET /api/ca/info: code = %q, want %q", env.Code, domain.ErrCANotFound.Code)
	}

	status, _ = doJSON(t, srv, http.MethodPost, "/api/ca", testAdminToken,
		map[string]any{"name": "Tower Root"})
	if status != http.StatusCreated {
		t.Fatalf("POST /api/ca: status = %d, want 201", status)
	}

	status, env = doJSON(t, srv, http.MethodGet, "/api/ca/info", testAdminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("GET /api/ca/info after creation: status = %d, want 200", status)
	}
	var detail struct {
		Exists      bool   `json:"exists"`
		Fingerprint string `json:"fingerprint"`
	}
	unmarshalData(t, env, &detail)
	if !detail.Exists || detail.Fingerprint == "" {
		t.Fatalf("GET /api/ca/info after creation: incomplete response %+v", detail)
	}
}

// TestRouter_FullFlow drives the complete issuance cycle through HTTP:
// CA creation, organization and host setup, invite generation, enrollment,
// bundle download, and invite revocation.
func TestRouter_FullFlow(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t))
	defer srv.Close()

	// CA info before creation reports absence, not an error.
	status, env := doJSON(t, srv, http.MethodGet, "/api/ca", testAdminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("GET /api/ca: status = %d, want 200", status)
	}
	var caInfo struct {
		Exists bool `json:"exists"`
	}
	unmarshalData(t, env, &caInfo)
	if caInfo.Exists {
		t.Fatal("CA should not exist yet")
	}

	// Create the CA.
	status, env = doJSON(t, srv, http.MethodPost, "/api/ca", testAdminToken,
		map[string]any{"name": "Tower Root"})
	if status != http.StatusCreated {
		t.Fatalf("POST /api/ca: status = %d, want 201 (code %s)", status, env.Code)
	}
	var ca struct {
		Fingerprint    string `json:"fingerprint"`
		CertificatePEM string `json:"certificate_pem"`
	}
	unmarshalData(t, env, &ca)
	if ca.Fingerprint == "" || !strings.Contains(ca.CertificatePEM, "BEGIN") {
		t.Fatalf("POST /api/ca: incomplete response %+v", ca)
	}

	// Second creation conflicts.
	status, env = doJSON(t, srv, http.MethodPost, "/api/ca", testAdminToken,
		map[string]any{"name": "Another Root"})
	if status != http.StatusConflict {
		t.Fatalf("duplicate CA: status = %d, want 409 (code %s)", status, env.Code)
	}

	// Create an organization.
	status, env = doJSON(t, srv, http.MethodPost, "/api/orgs", testAdminToken,
		map[string]any{"name": "acme"})
	if status != http.StatusCreated {
		t.Fatalf("POST /api/orgs: status = %d, want 201 (code %s)", status, env.Code)
	}
	var org struct {
		Name   string `json:"name"`
		Subnet string `json:"subnet"`
	}
	unmarshalData(t, env, &org)
	if org.Subnet != "fd42:9e1a:27cd:1::/64" {
		t.Errorf("org subnet = %q, want fd42:9e1a:27cd:1::/64", org.Subnet)
	}

	// Create a host with a server-generated keypair.
	status, env = doJSON(t, srv, http.MethodPost, "/api/orgs/acme/hosts", testAdminToken,
		map[string]any{"name": "web01", "tags": []string{"edge"}})
	if status != http.StatusCreated {
		t.Fatalf("POST hosts: status = %d, want 201 (code %s)", status, env.Code)
	}
	var host struct {
		Address        string `json:"address"`
		CertificatePEM string `json:"certificate_pem"`
		PrivateKeyPEM  string `json:"private_key_pem"`
	}
	unmarshalData(t, env, &host)
	if host.Address != "fd42:9e1a:27cd:1::1" {
		t.Errorf("host address = %q, want fd42:9e1a:27cd:1::1", host.Address)
	}
	if host.CertificatePEM == "" {
		t.Error("host certificate missing")
	}
	if host.PrivateKeyPEM != "" {
		t.Error("private key must not appear in API responses")
	}

	// Download the bundle; the raw zip bypasses the envelope.
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/orgs/acme/hosts/web01/download", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download: status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/zip" {
		t.Errorf("download content type = %q, want application/zip", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "acme_web01_config.zip") {
		t.Errorf("content disposition = %q, want acme_web01_config.zip filename", cd)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("bundle is not a zip: %v", err)
	}
	entries := make(map[string]bool, len(zr.File))
	for _, f := range zr.File {
		entries[f.Name] = true
	}
	for _, want := range []string{"config.yaml", "ca.crt", "host.crt", "host.key"} {
		if !entries[want] {
			t.Errorf("bundle missing %s (has %v)", want, entries)
		}
	}

	// Generate a two-use invite.
	status, env = doJSON(t, srv, http.MethodPost, "/api/invites", testAdminToken,
		map[string]any{"org": "acme", "days_valid": 1, "uses": 2})
	if status != http.StatusCreated {
		t.Fatalf("POST /api/invites: status = %d, want 201 (code %s)", status, env.Code)
	}
	var invite struct {
		Code          string `json:"code"`
		RemainingUses int    `json:"remaining_uses"`
	}
	unmarshalData(t, env, &invite)
	if !strings.HasPrefix(invite.Code, "ntiv_") {
		t.Fatalf("invite code = %q, want ntiv_ prefix", invite.Code)
	}
	if invite.RemainingUses != 2 {
		t.Errorf("remaining uses = %d, want 2", invite.RemainingUses)
	}

	// Enroll a host with the invite code; no admin token.
	status, env = doJSON(t, srv, http.MethodPost, "/api/enroll", "",
		map[string]any{"code": invite.Code, "name": "laptop", "tags": []string{"mobile"}})
	if status != http.StatusCreated {
		t.Fatalf("POST /api/enroll: status = %d, want 201 (code %s)", status, env.Code)
	}
	var enrolled struct {
		Org            string `json:"org"`
		Address        string `json:"address"`
		CertificatePEM string `json:"certificate_pem"`
		PrivateKeyPEM  string `json:"private_key_pem"`
		CACertPEM      string `json:"ca_cert_pem"`
		ConfigYAML     string `json:"config_yaml"`
		RemainingUses  int    `json:"remaining_uses"`
	}
	unmarshalData(t, env, &enrolled)
	if enrolled.Org != "acme" {
		t.Errorf("enrolled org = %q, want acme", enrolled.Org)
	}
	if enrolled.Address != "fd42:9e1a:27cd:1::2" {
		t.Errorf("enrolled address = %q, want fd42:9e1a:27cd:1::2", enrolled.Address)
	}
	if enrolled.PrivateKeyPEM == "" {
		t.Error("server-generated enrollment must return the private key")
	}
	if enrolled.CACertPEM == "" {
		t.Error("ca cert missing from enrollment response")
	}
	if !strings.Contains(enrolled.ConfigYAML, "org_acme") {
		t.Error("rendered config missing org firewall group")
	}
	if enrolled.RemainingUses != 1 {
		t.Errorf("remaining uses after enroll = %d, want 1", enrolled.RemainingUses)
	}

	// Bad invite code is rejected.
	status, env = doJSON(t, srv, http.MethodPost, "/api/enroll", "",
		map[string]any{"code": "ntiv_definitely-not-valid", "name": "rogue"})
	if status != http.StatusUnauthorized {
		t.Fatalf("bad code: status = %d, want 401 (code %s)", status, env.Code)
	}

	// Revoke the invite; further enrollment fails.
	status, _ = doJSON(t, srv, http.MethodPost, "/api/invites/revoke", testAdminToken,
		map[string]any{"code": invite.Code})
	if status != http.StatusOK {
		t.Fatalf("revoke: status = %d, want 200", status)
	}
	status, env = doJSON(t, srv, http.MethodPost, "/api/enroll", "",
		map[string]any{"code": invite.Code, "name": "latecomer"})
	if status != http.StatusUnauthorized {
		t.Fatalf("revoked code: status = %d, want 401 (code %s)", status, env.Code)
	}

	// Listings reflect both hosts.
	status, env = doJSON(t, srv, http.MethodGet, "/api/hosts", testAdminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("GET /api/hosts: status = %d", status)
	}
	var hostList struct {
		Total int `json:"total"`
	}
	unmarshalData(t, env, &hostList)
	if hostList.Total != 2 {
		t.Errorf("host total = %d, want 2", hostList.Total)
	}

	// Metrics exposition reflects the traffic.
	resp, err = srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	text := string(body)
	if !strings.Contains(text, "tower_certs_issued_total 2") {
		t.Error("metrics missing tower_certs_issued_total 2")
	}
	if !strings.Contains(text, "tower_invites_redeemed_total 1") {
		t.Error("metrics missing tower_invites_redeemed_total 1")
	}
	if !strings.Contains(text, "tower_http_requests_total") {
		t.Error("metrics missing tower_http_requests_total")
	}
}

// TestRouter_ClientHeldKey verifies enrollment with a client-supplied
// public key: the server never returns a private key and the bundle
// omits host.key.
func TestRouter_ClientHeldKey(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t))
	defer srv.Close()

	mustStatus := func(status, want int, what string, env envelope) {
		t.Helper()
		if status != want {
			t.Fatalf("%s: status = %d, want %d (code %s)", what, status, want, env.Code)
		}
	}

	status, env := doJSON(t, srv, http.MethodPost, "/api/ca", testAdminToken, map[string]any{"name": "Root"})
	mustStatus(status, http.StatusCreated, "create ca", env)
	status, env = doJSON(t, srv, http.MethodPost, "/api/orgs", testAdminToken, map[string]any{"name": "lab"})
	mustStatus(status, http.StatusCreated, "create org", env)
	status, env = doJSON(t, srv, http.MethodPost, "/api/invites", testAdminToken,
		map[string]any{"org": "lab", "days_valid": 1, "uses": 1})
	mustStatus(status, http.StatusCreated, "generate invite", env)
	var invite struct {
		Code string `json:"code"`
	}
	unmarshalData(t, env, &invite)

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pubPEM := string(domain.MarshalPublicKeyPEM(pub))

	status, env = doJSON(t, srv, http.MethodPost, "/api/enroll", "",
		map[string]any{"code": invite.Code, "name": "byok", "public_key_pem": pubPEM})
	mustStatus(status, http.StatusCreated, "enroll", env)
	var enrolled struct {
		PrivateKeyPEM  string `json:"private_key_pem"`
		CertificatePEM string `json:"certificate_pem"`
	}
	unmarshalData(t, env, &enrolled)
	if enrolled.PrivateKeyPEM != "" {
		t.Error("client-held key enrollment must not return a private key")
	}
	if enrolled.CertificatePEM == "" {
		t.Error("certificate missing")
	}

	// The exported bundle has no host.key entry.
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/orgs/lab/hosts/byok/download", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("bundle is not a zip: %v", err)
	}
	for _, f := range zr.File {
		if f.Name == "host.key" {
			t.Error("bundle must omit host.key for client-held keys")
		}
	}
}

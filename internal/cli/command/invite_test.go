package command

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestInviteGenerate(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/api/invites", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var body struct {
			Org       string `json:"org"`
			DaysValid int    `json:"days_valid"`
			Uses      int    `json:"uses"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Org != "acme" {
			t.Errorf("org = %q, want acme", body.Org)
		}
		if body.DaysValid != 14 || body.Uses != 5 {
			t.Errorf("days_valid = %d, uses = %d, want 14 and 5", body.DaysValid, body.Uses)
		}
		jsonResponse(w, http.StatusCreated, sampleInvite())
	})

	c := makeTestContext(server, map[string]any{
		"org":  "acme",
		"days": 14,
		"uses": 5,
	}, nil)
	if err := inviteGenerate(c); err != nil {
		t.Errorf("inviteGenerate() error = %v", err)
	}
}

func TestInviteList_Filters(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/api/invites", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("org") != "acme" {
			t.Errorf("org query = %q, want acme", q.Get("org"))
		}
		if q.Get("active_only") != "true" {
			t.Errorf("active_only query = %q, want true", q.Get("active_only"))
		}
		jsonResponse(w, http.StatusOK, map[string]any{
			"items": []inviteItem{sampleInvite()},
			"total": 1,
		})
	})

	c := makeTestContext(server, map[string]any{
		"org":    "acme",
		"active": true,
	}, nil)
	if err := inviteList(c); err != nil {
		t.Errorf("inviteList() error = %v", err)
	}
}

func TestInviteRevoke(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	code := sampleInvite().Code
	server.handle("/api/invites/revoke", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Code string `json:"code"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Code != code {
			t.Errorf("code = %q, want %q", body.Code, code)
		}
		jsonResponse(w, http.StatusOK, nil)
	})

	c := makeTestContext(server, map[string]any{"force": true}, []string{code})
	if err := inviteRevoke(c); err != nil {
		t.Errorf("inviteRevoke() error = %v", err)
	}
}

func TestInviteRevoke_MissingCode(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	c := makeTestContext(server, map[string]any{"force": true}, nil)
	if err := inviteRevoke(c); err == nil {
		t.Error("inviteRevoke() should fail without a code argument")
	}
}

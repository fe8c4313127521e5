package command

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestOrgCreate(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/api/orgs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var body struct {
			Name string `json:"name"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Name != "acme" {
			t.Errorf("name = %q, want acme", body.Name)
		}
		jsonResponse(w, http.StatusCreated, sampleOrg())
	})

	c := makeTestContext(server, nil, []string{"acme"})
	if err := orgCreate(c); err != nil {
		t.Errorf("orgCreate() error = %v", err)
	}
}

func TestOrgCreate_MissingName(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	c := makeTestContext(server, nil, nil)
	if err := orgCreate(c); err == nil {
		t.Error("orgCreate() should fail without a name argument")
	}
}

func TestOrgList(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/api/orgs", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]any{
			"items": []orgItem{sampleOrg()},
			"total": 1,
		})
	})

	c := makeTestContext(server, nil, nil)
	if err := orgList(c); err != nil {
		t.Errorf("orgList() error = %v", err)
	}
}

func TestOrgDelete(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	called := false
	server.handle("/api/orgs/acme", func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		jsonResponse(w, http.StatusOK, nil)
	})

	c := makeTestContext(server, map[string]any{"force": true}, []string{"acme"})
	if err := orgDelete(c); err != nil {
		t.Errorf("orgDelete() error = %v", err)
	}
	if !called {
		t.Error("delete endpoint was not called")
	}
}

func TestOrgDelete_NotFound(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/api/orgs/ghost", func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusNotFound, "NT-ORG-4040", "organization not found")
	})

	c := makeTestContext(server, map[string]any{"force": true}, []string{"ghost"})
	if err := orgDelete(c); err == nil {
		t.Error("orgDelete() should propagate the not-found error")
	}
}

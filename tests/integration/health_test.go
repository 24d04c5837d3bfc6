//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestLivez(t *testing.T) {
	resp := doGet(t, "/livez")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d", resp.StatusCode)
	}
	body := decodeJSON[probeResponse](t, resp)
	if body.Status != "ok" {
		t.Errorf("unexpected status %q, checks: %v", body.Status, body.Checks)
	}
}

func TestReadyz(t *testing.T) {
	resp := doGet(t, "/readyz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d", resp.StatusCode)
	}
	body := decodeJSON[probeResponse](t, resp)
	if body.Status != "ok" {
		t.Errorf("unexpected status %q, checks: %v", body.Status, body.Checks)
	}
}

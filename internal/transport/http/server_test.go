package httptransport

import (
	"net/http"
	"testing"
	"time"
)

func TestNewServerAppliesDefaults(t *testing.T) {
	srv := NewServer(ServerConfig{Address: ":8080"}, http.NewServeMux())

	if srv.Addr != ":8080" {
		t.Fatalf("unexpected address %q", srv.Addr)
	}
	if srv.ReadTimeout != defaultReadTimeout || srv.WriteTimeout != defaultWriteTimeout || srv.IdleTimeout != defaultIdleTimeout {
		t.Fatalf("defaults not applied: read=%v write=%v idle=%v", srv.ReadTimeout, srv.WriteTimeout, srv.IdleTimeout)
	}
	if srv.ReadHeaderTimeout != srv.ReadTimeout {
		t.Fatalf("header timeout must track read timeout, got %v", srv.ReadHeaderTimeout)
	}
}

func TestNewServerKeepsExplicitTimeouts(t *testing.T) {
	srv := NewServer(ServerConfig{
		Address:      ":0",
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  90 * time.Second,
	}, http.NewServeMux())

	if srv.ReadTimeout != 2*time.Second || srv.WriteTimeout != 30*time.Second || srv.IdleTimeout != 90*time.Second {
		t.Fatalf("explicit timeouts overridden: read=%v write=%v idle=%v", srv.ReadTimeout, srv.WriteTimeout, srv.IdleTimeout)
	}
}

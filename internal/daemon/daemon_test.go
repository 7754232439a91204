package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/wppdesk/internal/client"
	"github.com/matheus3301/wppdesk/internal/lock"
	"github.com/matheus3301/wppdesk/internal/profile"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

// fakeWAHA serves one session with one chat and records read calls.
type fakeWAHA struct {
	mu    sync.Mutex
	reads []string
	keys  []string
}

func (f *fakeWAHA) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.keys = append(f.keys, r.Header.Get("X-Api-Key"))
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/sessions":
		_, _ = w.Write([]byte(`[{"name":"sales","status":"WORKING"}]`))
	case r.URL.Path == "/api/sales/chats/overview":
		_, _ = w.Write([]byte(`[{"id":"111@c.us","name":"Ana","lastMessage":` +
			`{"id":"m9","body":"hi","timestamp":1700000000,"fromMe":false,"ack":2}}]`))
	case strings.HasSuffix(r.URL.Path, "/messages/read"):
		f.mu.Lock()
		f.reads = append(f.reads, r.URL.Path)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	case strings.HasPrefix(r.URL.Path, "/api/sales/chats/111@c.us/messages"):
		_, _ = w.Write([]byte(`[{"id":"m9","body":"hi","timestamp":1700000000,"fromMe":false,"ack":2}]`))
	case strings.HasPrefix(r.URL.Path, "/api/files/"):
		_, _ = w.Write([]byte("media"))
	default:
		http.NotFound(w, r)
	}
}

func setupEnv(t *testing.T, gatewayURL string) {
	t.Helper()
	t.Setenv("WPPDESK_HOME", t.TempDir())
	t.Setenv("WAHA_URL", gatewayURL)
	t.Setenv("WAHA_API_KEY", "test-key")
	t.Setenv("WPPDESK_SETTLE_DELAY", "10ms")
}

// TestFxModuleWiring verifies the fx dependency graph resolves without errors.
func TestFxModuleWiring(t *testing.T) {
	if err := fx.ValidateApp(Module(Params{Profile: "fxtest"})); err != nil {
		t.Fatalf("ValidateApp() error = %v", err)
	}
}

func TestDaemonLifecycle(t *testing.T) {
	waha := &fakeWAHA{}
	gw := httptest.NewServer(waha)
	defer gw.Close()
	setupEnv(t, gw.URL)

	var srv *Server
	app := fxtest.New(t,
		Module(Params{Profile: "test", Listen: "127.0.0.1:0"}),
		fx.Populate(&srv),
	)
	app.RequireStart()

	// The lock records where the daemon listens.
	info, err := lock.Read(profile.Dir("test"))
	if err != nil {
		t.Fatalf("lock.Read() error = %v", err)
	}
	if info.Addr != srv.Addr() {
		t.Errorf("lock addr = %q, want %q", info.Addr, srv.Addr())
	}

	c := client.New(srv.Addr())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The first page is fetched in the background on start.
	deadline := time.Now().Add(3 * time.Second)
	for {
		view, err := c.Chats(ctx, false)
		if err != nil {
			t.Fatal(err)
		}
		if len(view.Chats) == 1 {
			got := view.Chats[0]
			if got.SessionID != "sales" || got.DisplayName != "Ana" || !got.Unread {
				t.Errorf("chat = %+v", got)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("initial chat fetch never landed")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if err := c.MarkRead(ctx, "111@c.us"); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}

	thread, err := c.OpenThread(ctx, "sales", "111@c.us")
	if err != nil {
		t.Fatal(err)
	}
	if len(thread.Messages) != 1 || thread.Messages[0].ID != "m9" {
		t.Errorf("messages = %+v", thread.Messages)
	}

	status, err := c.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status.Profile != "test" || !status.Polling {
		t.Errorf("status = %+v", status)
	}

	// Gateway proxy keeps the key on the daemon side.
	resp, err := http.Get("http://" + srv.Addr() + ProxyPrefix + "/api/files/sales/x.jpg")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("proxy status = %d", resp.StatusCode)
	}

	app.RequireStop()

	waha.mu.Lock()
	defer waha.mu.Unlock()
	if len(waha.reads) != 1 || waha.reads[0] != "/api/sales/chats/111@c.us/messages/read" {
		t.Errorf("read calls = %v", waha.reads)
	}
	for _, k := range waha.keys {
		if k != "test-key" {
			t.Errorf("gateway saw X-Api-Key %q", k)
			break
		}
	}
	if _, err := lock.Read(profile.Dir("test")); err == nil {
		t.Error("lock file left after stop")
	}
}

// TestSecondDaemonRefused verifies a profile runs one daemon at a time.
func TestSecondDaemonRefused(t *testing.T) {
	gw := httptest.NewServer(&fakeWAHA{})
	defer gw.Close()
	setupEnv(t, gw.URL)

	first := fxtest.New(t, Module(Params{Profile: "dup", Listen: "127.0.0.1:0"}))
	first.RequireStart()
	defer first.RequireStop()

	second := fx.New(Module(Params{Profile: "dup", Listen: "127.0.0.1:0"}), fx.NopLogger)
	err := second.Err()
	if err == nil || !strings.Contains(err.Error(), "profile lock held") {
		t.Fatalf("second daemon error = %v, want lock held", err)
	}
}

func TestInvalidConfigFailsStartup(t *testing.T) {
	setupEnv(t, "not a url")

	app := fx.New(Module(Params{Profile: "bad", Listen: "127.0.0.1:0"}), fx.NopLogger)
	if app.Err() == nil {
		t.Fatal("expected startup error for invalid gateway url")
	}
}

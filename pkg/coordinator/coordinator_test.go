package coordinator_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/collabboard/coordinator/pkg/coordinator"
	"github.com/collabboard/coordinator/pkg/events"
	"github.com/collabboard/coordinator/pkg/types"
)

func newTestCoordinator(t *testing.T) *coordinator.Coordinator {
	t.Helper()

	dir, err := os.MkdirTemp("", "board-coordinator-test")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	c, err := coordinator.New(coordinator.Config{DataDir: dir, ListenAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// startTestCoordinator starts the background loops (broker, flush queue,
// collector) without relying on the coordinator's own internal listener,
// and registers a shutdown so the test doesn't leak goroutines.
func startTestCoordinator(t *testing.T, c *coordinator.Coordinator) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := c.Start(ctx)
	go func() {
		<-errCh // drain; the test's own httptest listener is what's actually exercised
	}()

	t.Cleanup(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = c.Shutdown(shutdownCtx)
		cancel()
	})
}

func TestCoordinatorServesReadOnlyTasksEndpoint(t *testing.T) {
	c := newTestCoordinator(t)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/tasks")
	if err != nil {
		t.Fatalf("GET /tasks: %v", err)
	}
	defer resp.Body.Close()

	var tasks []*types.Task
	if err := json.NewDecoder(resp.Body).Decode(&tasks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected empty board, got %d tasks", len(tasks))
	}
}

func TestCoordinatorWebsocketCreateTask(t *testing.T) {
	c := newTestCoordinator(t)
	startTestCoordinator(t, c)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var snapshot events.Envelope
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snapshot.Type != events.BoardSnapshot {
		t.Fatalf("expected BOARD_SNAPSHOT, got %s", snapshot.Type)
	}

	if err := conn.ReadJSON(&events.Envelope{}); err != nil {
		t.Fatalf("read presence state: %v", err)
	}

	create := events.Envelope{
		Type: events.TaskCreate,
		Payload: map[string]any{
			"id":       "t1",
			"columnId": "todo",
			"title":    "Ship it",
		},
	}
	if err := conn.WriteJSON(create); err != nil {
		t.Fatalf("write create: %v", err)
	}

	var created events.Envelope
	if err := conn.ReadJSON(&created); err != nil {
		t.Fatalf("read created: %v", err)
	}
	if created.Type != events.TaskCreated {
		t.Fatalf("expected TASK_CREATED, got %s", created.Type)
	}
}

func TestCoordinatorStartThenShutdown(t *testing.T) {
	c := newTestCoordinator(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := c.Start(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := c.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("unexpected server error: %v", err)
		}
	default:
	}
}

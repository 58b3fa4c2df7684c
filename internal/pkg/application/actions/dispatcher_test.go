package actions

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/freddez/eplumber/internal/pkg/application/config"
	"github.com/freddez/eplumber/pkg/types"
)

type fakeNotifier struct {
	mu         sync.Mutex
	subjects   []string
	bodies     []string
	recipients [][]string
}

func (f *fakeNotifier) Send(ctx context.Context, subject, body string, recipients []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, body)
	f.recipients = append(f.recipients, recipients)
	return nil
}

func TestDispatcherDoRecordsHistoryAndNotifies(t *testing.T) {
	is := is.New(t)

	var gotRequest bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequest = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	history := NewHistory()
	notifier := &fakeNotifier{}
	d := NewDispatcher(history, notifier, []string{"ops@example.com"}, zerolog.Nop())
	d.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	action := config.ActionConfig{Name: "cool", Route: srv.URL}
	tests := []types.TestResult{
		{SensorName: "temp", Operator: ">", Value: 25.0, CurrentValue: 30.0, Passes: true},
	}

	d.Do(context.Background(), action, "too-hot", tests)

	is.True(gotRequest)

	entries := history.Entries()
	is.Equal(len(entries), 1)
	is.Equal(entries[0].Name, "cool")
	is.Equal(entries[0].Route, srv.URL)

	is.Equal(len(notifier.subjects), 1)
	is.Equal(notifier.subjects[0], "Eplumber Action: cool")
	is.Equal(notifier.recipients[0][0], "ops@example.com")
}

func TestDispatcherDoTolerates404(t *testing.T) {
	is := is.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	history := NewHistory()
	notifier := &fakeNotifier{}
	d := NewDispatcher(history, notifier, nil, zerolog.Nop())

	action := config.ActionConfig{Name: "cool", Route: srv.URL}
	d.Do(context.Background(), action, "too-hot", nil)

	is.Equal(len(history.Entries()), 1)
}

func TestDispatcherDoToleratesUnreachableRoute(t *testing.T) {
	is := is.New(t)

	history := NewHistory()
	notifier := &fakeNotifier{}
	d := NewDispatcher(history, notifier, nil, zerolog.Nop())

	action := config.ActionConfig{Name: "cool", Route: "http://127.0.0.1:1/unreachable"}
	d.Do(context.Background(), action, "too-hot", nil)

	is.Equal(len(history.Entries()), 1)
}

func TestHistoryEvictsOldestBeyondCapacity(t *testing.T) {
	is := is.New(t)

	h := NewHistory()
	for i := 0; i < historyCapacity+10; i++ {
		h.Append(types.ActionHistoryEntry{Name: fmt.Sprintf("a%d", i), Route: "r", Timestamp: time.Now().Format(time.RFC3339)})
	}
	entries := h.Entries()
	is.Equal(len(entries), historyCapacity)
	is.Equal(entries[0].Name, "a10")
	is.Equal(entries[len(entries)-1].Name, fmt.Sprintf("a%d", historyCapacity+9))
}

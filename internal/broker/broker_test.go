package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PriNova/graphone/internal/log"
	"github.com/PriNova/graphone/internal/metrics"
	"github.com/PriNova/graphone/internal/protocol"
	"github.com/PriNova/graphone/internal/state"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR") // Suppress logs in tests
	os.Exit(m.Run())
}

// fakeChild records written commands and optionally answers them.
type fakeChild struct {
	mu       sync.Mutex
	writes   []protocol.Command
	writeErr error
	respond  func(cmd protocol.Command) *protocol.Response
	out      chan *protocol.Response
}

func (f *fakeChild) Write(p []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	var cmd protocol.Command
	if err := json.Unmarshal(p, &cmd); err != nil {
		return err
	}
	f.mu.Lock()
	f.writes = append(f.writes, cmd)
	respond := f.respond
	f.mu.Unlock()
	if respond != nil {
		if resp := respond(cmd); resp != nil {
			f.out <- resp
		}
	}
	return nil
}

func (f *fakeChild) Kill() error { return nil }
func (f *fakeChild) PID() int    { return 4242 }

func (f *fakeChild) commands() []protocol.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Command(nil), f.writes...)
}

func ok(cmd protocol.Command) *protocol.Response {
	return &protocol.Response{ID: cmd.ID, Type: protocol.TypeResponse, Command: cmd.Type, Success: true}
}

type harness struct {
	store   *state.Store
	broker  *Broker
	metrics *metrics.Metrics
	child   *fakeChild
	gen     uint64
}

func newHarness(t *testing.T, respond func(protocol.Command) *protocol.Response) *harness {
	t.Helper()
	store := state.NewStore()
	m := metrics.New()
	b := New(store, m, time.Second)
	child := &fakeChild{respond: respond, out: make(chan *protocol.Response, 100)}
	gen, err := store.SetChild(child)
	require.NoError(t, err)
	go b.Resolve(child.out)
	t.Cleanup(func() { close(child.out) })
	return &harness{store: store, broker: b, metrics: m, child: child, gen: gen}
}

func TestSendWithResponse(t *testing.T) {
	h := newHarness(t, ok)
	resp, err := h.broker.SendWithResponse(context.Background(), &protocol.Command{ID: "r1", Type: protocol.CmdGetState}, 0)
	require.NoError(t, err)
	assert.Equal(t, "r1", resp.ID)
	assert.Equal(t, protocol.CmdGetState, resp.Command)
	assert.Equal(t, 0, h.store.Pending())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Requests.WithLabelValues(protocol.CmdGetState, metrics.OutcomeOK)))
}

func TestSendWithResponseRequiresID(t *testing.T) {
	h := newHarness(t, ok)
	_, err := h.broker.SendWithResponse(context.Background(), &protocol.Command{Type: protocol.CmdPing}, 0)
	assert.ErrorIs(t, err, ErrMissingID)
	assert.Empty(t, h.child.commands())
}

func TestSendWithoutChild(t *testing.T) {
	b := New(state.NewStore(), nil, 0)
	err := b.Send(context.Background(), &protocol.Command{Type: protocol.CmdAbort, SessionID: "s"})
	assert.ErrorIs(t, err, ErrNotStarted)
	_, err = b.SendWithResponse(context.Background(), &protocol.Command{ID: "x", Type: protocol.CmdPing}, 0)
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestSendFireAndForget(t *testing.T) {
	h := newHarness(t, nil)
	err := h.broker.Send(context.Background(), &protocol.Command{Type: protocol.CmdPrompt, SessionID: "s1", Message: "hi"})
	require.NoError(t, err)
	cmds := h.child.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, "hi", cmds[0].Message)
	assert.Empty(t, cmds[0].ID)
}

func TestWriteFailureRemovesWaiter(t *testing.T) {
	h := newHarness(t, nil)
	h.child.writeErr = errors.New("broken pipe")
	_, err := h.broker.SendWithResponse(context.Background(), &protocol.Command{ID: "w1", Type: protocol.CmdPing}, 0)
	assert.ErrorIs(t, err, ErrWrite)
	assert.Equal(t, 0, h.store.Pending())

	err = h.broker.Send(context.Background(), &protocol.Command{Type: protocol.CmdAbort})
	assert.ErrorIs(t, err, ErrWrite)
}

func TestTimeoutAndLateResponse(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.broker.SendWithResponse(context.Background(), &protocol.Command{ID: "slow", Type: protocol.CmdGetMessages}, 30*time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Equal(t, 0, h.store.Pending())

	// The late response finds no waiter and is dropped.
	h.child.out <- &protocol.Response{ID: "slow", Type: protocol.TypeResponse, Command: protocol.CmdGetMessages, Success: true}
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(h.metrics.LateResponses) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, h.store.Pending())
}

func TestTerminationReleasesWaiters(t *testing.T) {
	h := newHarness(t, nil)
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func(i int) {
			_, err := h.broker.SendWithResponse(context.Background(),
				&protocol.Command{ID: fmt.Sprintf("t%d", i), Type: protocol.CmdGetState}, 10*time.Second)
			errs <- err
		}(i)
	}
	require.Eventually(t, func() bool { return h.store.Pending() == 3 }, time.Second, time.Millisecond)

	detached, released := h.store.Detach(h.gen, ErrTerminated)
	assert.True(t, detached)
	assert.Equal(t, 3, released)
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, <-errs, ErrTerminated)
	}

	_, err := h.broker.SendWithResponse(context.Background(), &protocol.Command{ID: "after", Type: protocol.CmdPing}, 0)
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestContextCancelRemovesWaiter(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := h.broker.SendWithResponse(ctx, &protocol.Command{ID: "c1", Type: protocol.CmdPing}, 10*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, h.store.Pending())
}

func TestExactlyOneOutcomePerRequest(t *testing.T) {
	// Every other request is answered; the rest time out.
	h := newHarness(t, func(cmd protocol.Command) *protocol.Response {
		var n int
		fmt.Sscanf(cmd.ID, "req-%d", &n)
		if n%2 == 0 {
			return ok(cmd)
		}
		return nil
	})

	const total = 40
	var wg sync.WaitGroup
	var mu sync.Mutex
	answered, timedOut := 0, 0
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := h.broker.SendWithResponse(context.Background(),
				&protocol.Command{ID: fmt.Sprintf("req-%d", i), Type: protocol.CmdPing}, 50*time.Millisecond)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && resp != nil:
				answered++
			case IsTimeout(err):
				timedOut++
			default:
				t.Errorf("unexpected outcome for %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, total/2, answered)
	assert.Equal(t, total/2, timedOut)
	assert.Equal(t, 0, h.store.Pending())
}

func TestWaitReadySucceedsAfterRetry(t *testing.T) {
	calls := 0
	var mu sync.Mutex
	h := newHarness(t, func(cmd protocol.Command) *protocol.Response {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return nil
		}
		return ok(cmd)
	})
	policy := RetryPolicy{Attempts: 3, Backoff: 10 * time.Millisecond, Timeout: 30 * time.Millisecond}
	require.NoError(t, h.broker.WaitReady(context.Background(), policy))
	assert.Len(t, h.child.commands(), 2)
}

func TestWaitReadyFailsAfterThreeAttempts(t *testing.T) {
	h := newHarness(t, nil)
	policy := ReadyPolicy()
	policy.Timeout = 20 * time.Millisecond

	start := time.Now()
	err := h.broker.WaitReady(context.Background(), policy)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrNotReady)
	assert.True(t, IsTimeout(err), "last failure should be wrapped: %v", err)
	cmds := h.child.commands()
	require.Len(t, cmds, 3)
	for _, c := range cmds {
		assert.Equal(t, protocol.CmdPing, c.Type)
	}
	// Two 500ms backoffs between three attempts.
	assert.GreaterOrEqual(t, elapsed, time.Second)
	assert.Less(t, elapsed, 3*time.Second)
}

func TestRetryOnTimeoutReusesFields(t *testing.T) {
	calls := 0
	var mu sync.Mutex
	h := newHarness(t, func(cmd protocol.Command) *protocol.Response {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return nil
		}
		return ok(cmd)
	})
	policy := RetryPolicy{Attempts: 3, Backoff: 5 * time.Millisecond, Timeout: 20 * time.Millisecond}
	resp, err := h.broker.RetryOnTimeout(context.Background(), policy,
		&protocol.Command{Type: protocol.CmdCreateSession, SessionID: "fixed-session", Cwd: "/work"})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	cmds := h.child.commands()
	require.Len(t, cmds, 3)
	ids := map[string]bool{}
	for _, c := range cmds {
		assert.Equal(t, "fixed-session", c.SessionID)
		assert.Equal(t, "/work", c.Cwd)
		ids[c.ID] = true
	}
	assert.Len(t, ids, 3, "each attempt uses a fresh request id")
}

func TestRetryOnTimeoutStopsOnOtherErrors(t *testing.T) {
	h := newHarness(t, nil)
	h.child.writeErr = errors.New("closed")
	policy := RetryPolicy{Attempts: 3, Backoff: time.Second, Timeout: 20 * time.Millisecond}

	start := time.Now()
	_, err := h.broker.RetryOnTimeout(context.Background(), policy, &protocol.Command{Type: protocol.CmdCreateSession, SessionID: "s"})
	assert.ErrorIs(t, err, ErrWrite)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRetryOnTimeoutExhausted(t *testing.T) {
	h := newHarness(t, nil)
	policy := RetryPolicy{Attempts: 2, Backoff: 5 * time.Millisecond, Timeout: 10 * time.Millisecond}
	_, err := h.broker.RetryOnTimeout(context.Background(), policy, &protocol.Command{Type: protocol.CmdCreateSession, SessionID: "s"})
	assert.True(t, IsTimeout(err))
	assert.Len(t, h.child.commands(), 2)
}

func TestUnsuccessfulResponseIsNotAnError(t *testing.T) {
	h := newHarness(t, func(cmd protocol.Command) *protocol.Response {
		return &protocol.Response{ID: cmd.ID, Type: protocol.TypeResponse, Command: cmd.Type, Success: false, Error: "no such session"}
	})
	resp, err := h.broker.SendWithResponse(context.Background(), &protocol.Command{ID: "u1", Type: protocol.CmdCloseSession, SessionID: "zz"}, 0)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "no such session", resp.Error)
}

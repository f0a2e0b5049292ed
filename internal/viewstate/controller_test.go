package viewstate

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/testutil"
)

func newController(t *testing.T, store *testutil.MemoryStore, opts Options) *Controller {
	t.Helper()
	opts.Address = testutil.Addr
	opts.Logger = testutil.Logger()
	c := New(&testutil.Session{Silent: "alice", Interactive: "alice"}, store, opts)
	t.Cleanup(c.Close)
	return c
}

func connected(t *testing.T, store *testutil.MemoryStore, opts Options) *Controller {
	t.Helper()
	c := newController(t, store, opts)
	if !c.TrySilentConnect(context.Background()) {
		t.Fatal("silent connect failed")
	}
	return c
}

func words(v View) []string {
	out := make([]string, len(v.Entries))
	for i, e := range v.Entries {
		out[i] = e.Value
	}
	return out
}

func TestStartsDisconnected(t *testing.T) {
	c := newController(t, testutil.NewMemoryStore(), Options{})
	if v := c.View(); v.Phase != Disconnected || v.Connected() {
		t.Errorf("initial view = %+v", v)
	}
}

func TestSilentConnectFetchesPresent(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.Seed(testutil.Addr, "alice", "alice", "ocean", "bob", "forest", "alice", "ocean")
	c := connected(t, store, Options{})

	v := c.View()
	if v.Phase != Present {
		t.Fatalf("phase = %s, want present", v.Phase)
	}
	if v.Identity != "alice" {
		t.Errorf("identity = %q", v.Identity)
	}
	wantEntries := []models.WordCloudEntry{{Value: "ocean", Weight: 1}, {Value: "forest", Weight: 1}, {Value: "ocean", Weight: 1}}
	if !reflect.DeepEqual(v.Entries, wantEntries) {
		t.Errorf("entries = %v", v.Entries)
	}
	if !reflect.DeepEqual(v.Contributors, models.ContributorList{"alice", "bob"}) {
		t.Errorf("contributors = %v", v.Contributors)
	}
	if v.Digest == "" {
		t.Error("digest not recorded")
	}
}

func TestSilentConnectFails(t *testing.T) {
	store := testutil.NewMemoryStore()
	c := New(&testutil.Session{}, store, Options{Address: testutil.Addr, Logger: testutil.Logger()})
	defer c.Close()
	if c.TrySilentConnect(context.Background()) {
		t.Fatal("silent connect should fail")
	}
	if c.View().Phase != Disconnected {
		t.Error("state changed after failed silent connect")
	}
	if len(store.Calls()) != 0 {
		t.Errorf("store called while disconnected: %v", store.Calls())
	}
}

func TestConnectRejectedStaysDisconnected(t *testing.T) {
	c := New(&testutil.Session{}, testutil.NewMemoryStore(), Options{Address: testutil.Addr, Logger: testutil.Logger()})
	defer c.Close()
	if err := c.Connect(context.Background()); !errors.Is(err, apperr.ErrConnectRejected) {
		t.Fatalf("err = %v, want ErrConnectRejected", err)
	}
	if c.View().Phase != Disconnected {
		t.Error("state changed after rejection")
	}
}

func TestInteractiveConnectAbsent(t *testing.T) {
	c := New(&testutil.Session{Interactive: "bob"}, testutil.NewMemoryStore(), Options{Address: testutil.Addr, Logger: testutil.Logger()})
	defer c.Close()
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	v := c.View()
	if v.Phase != Absent || v.Identity != "bob" {
		t.Errorf("view = %+v", v)
	}
	if len(v.Entries) != 0 || len(v.Contributors) != 0 {
		t.Error("absent view should be empty")
	}
}

func TestFetchErrorUnavailable(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.FetchErr = errors.New("connection refused")
	c := connected(t, store, Options{})

	v := c.View()
	if v.Phase != Unavailable {
		t.Fatalf("phase = %s, want unavailable", v.Phase)
	}
	if !errors.Is(v.Err, apperr.ErrRemote) {
		t.Errorf("err = %v", v.Err)
	}
	if v.CanInitialize() {
		t.Error("initialize must not be offered when the record state is unknown")
	}
}

func TestFetchErrorCollapsedToAbsent(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.FetchErr = errors.New("connection refused")
	c := connected(t, store, Options{CollapseFetchErrors: true})

	v := c.View()
	if v.Phase != Absent {
		t.Fatalf("phase = %s, want absent", v.Phase)
	}
	if len(v.Entries) != 0 || len(v.Contributors) != 0 || v.Err != nil {
		t.Errorf("view = %+v, want empty", v)
	}
}

func TestFetchErrorDiscardsPriorView(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.Seed(testutil.Addr, "alice", "alice", "ocean")
	c := connected(t, store, Options{})
	if c.View().Phase != Present {
		t.Fatal("expected present")
	}

	store.FetchErr = errors.New("timeout")
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	v := c.View()
	if v.Phase != Unavailable || len(v.Entries) != 0 {
		t.Errorf("view = %+v", v)
	}

	store.FetchErr = nil
	_ = c.Refresh(context.Background())
	if c.View().Phase != Present {
		t.Error("refresh should recover from unavailable")
	}
}

func TestSubmitEmptyNeverCallsStore(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.Seed(testutil.Addr, "alice", "alice", "ocean")
	c := connected(t, store, Options{})
	before := c.View()
	callsBefore := len(store.Calls())

	if err := c.SubmitWord(context.Background(), ""); !errors.Is(err, apperr.ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
	if len(store.Calls()) != callsBefore {
		t.Errorf("store called: %v", store.Calls()[callsBefore:])
	}
	if after := c.View(); !reflect.DeepEqual(after, before) {
		t.Errorf("view changed: %+v -> %+v", before, after)
	}
}

func TestSubmitAddsOneEntry(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.Seed(testutil.Addr, "bob", "bob", "forest")
	c := connected(t, store, Options{})
	prior := len(c.View().Entries)

	if err := c.SubmitWord(context.Background(), "ocean"); err != nil {
		t.Fatalf("SubmitWord: %v", err)
	}
	v := c.View()
	if len(v.Entries) != prior+1 {
		t.Fatalf("entries = %d, want %d", len(v.Entries), prior+1)
	}
	if last := v.Entries[len(v.Entries)-1]; last.Value != "ocean" {
		t.Errorf("last entry = %q", last.Value)
	}
	if !reflect.DeepEqual(v.Contributors, models.ContributorList{"bob", "alice"}) {
		t.Errorf("contributors = %v", v.Contributors)
	}
}

func TestSubmitFailureStillRefetches(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.Seed(testutil.Addr, "alice", "alice", "ocean")
	c := connected(t, store, Options{})
	seq := c.View().Seq

	store.AppendErr = errors.New("rejected")
	if err := c.SubmitWord(context.Background(), "forest"); err != nil {
		t.Fatalf("append failure should not surface: %v", err)
	}
	v := c.View()
	if v.Seq <= seq {
		t.Error("no re-fetch after failed append")
	}
	if len(v.Entries) != 1 {
		t.Errorf("entries = %v", words(v))
	}
}

func TestSubmitWhileDisconnected(t *testing.T) {
	store := testutil.NewMemoryStore()
	c := newController(t, store, Options{})
	if err := c.SubmitWord(context.Background(), "x"); !errors.Is(err, apperr.ErrDisconnected) {
		t.Errorf("err = %v, want ErrDisconnected", err)
	}
	if len(store.Calls()) != 0 {
		t.Errorf("store called: %v", store.Calls())
	}
}

func TestInitializeOnlyFromAbsent(t *testing.T) {
	store := testutil.NewMemoryStore()
	c := newController(t, store, Options{})

	// Disconnected.
	if err := c.InitializeOneTime(context.Background()); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("disconnected: err = %v", err)
	}
	if len(store.Calls()) != 0 {
		t.Fatalf("store called: %v", store.Calls())
	}

	c.TrySilentConnect(context.Background())
	if c.View().Phase != Absent {
		t.Fatalf("phase = %s", c.View().Phase)
	}
	if err := c.InitializeOneTime(context.Background()); err != nil {
		t.Fatalf("InitializeOneTime: %v", err)
	}
	v := c.View()
	if v.Phase != Present || len(v.Entries) != 0 {
		t.Fatalf("after init view = %+v", v)
	}

	// Present: no-op.
	calls := len(store.Calls())
	if err := c.InitializeOneTime(context.Background()); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("present: err = %v", err)
	}
	if len(store.Calls()) != calls {
		t.Errorf("store called from present: %v", store.Calls()[calls:])
	}
}

func TestInitializeFromUnavailableIsNoop(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.FetchErr = errors.New("down")
	c := connected(t, store, Options{})
	calls := len(store.Calls())
	if err := c.InitializeOneTime(context.Background()); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("err = %v", err)
	}
	if len(store.Calls()) != calls {
		t.Error("store called from unavailable")
	}
}

func TestInitializeAlreadyExistsRefetches(t *testing.T) {
	store := testutil.NewMemoryStore()
	c := connected(t, store, Options{})
	// Someone else initializes between our fetch and our action.
	store.Seed(testutil.Addr, "bob", "bob", "forest")

	if err := c.InitializeOneTime(context.Background()); err != nil {
		t.Fatalf("InitializeOneTime: %v", err)
	}
	v := c.View()
	if v.Phase != Present || len(v.Entries) != 1 {
		t.Errorf("view = %+v", v)
	}
}

func TestMergeRepeats(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.Seed(testutil.Addr, "alice", "alice", "ocean", "bob", "ocean")
	c := connected(t, store, Options{MergeRepeats: true})
	want := []models.WordCloudEntry{{Value: "ocean", Weight: 2}}
	if got := c.View().Entries; !reflect.DeepEqual(got, want) {
		t.Errorf("entries = %v, want %v", got, want)
	}
}

func TestOnChangeNotified(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.Seed(testutil.Addr, "alice")
	c := newController(t, store, Options{})

	var mu sync.Mutex
	var phases []Phase
	c.OnChange(func(v View) {
		mu.Lock()
		phases = append(phases, v.Phase)
		mu.Unlock()
	})
	c.TrySilentConnect(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(phases, []Phase{Unknown, Present}) {
		t.Errorf("phases = %v", phases)
	}
}

func TestOnChangeEveryListener(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.Seed(testutil.Addr, "alice")
	c := newController(t, store, Options{})

	var mu sync.Mutex
	counts := make([]int, 2)
	for i := range counts {
		c.OnChange(func(View) {
			mu.Lock()
			counts[i]++
			mu.Unlock()
		})
	}
	c.TrySilentConnect(context.Background())
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	// Unknown, Present, then the refreshed Present.
	if !reflect.DeepEqual(counts, []int{3, 3}) {
		t.Errorf("notifications = %v", counts)
	}
}

// Two submissions issued back to back, with the first re-fetch held until
// the second submission has been issued. The final view must contain both
// words exactly once regardless of resolution order.
func TestInterleavedSubmissions(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.Seed(testutil.Addr, "alice")

	gate := make(chan struct{})
	held := make(chan struct{})
	store.BeforeFetch = func(n int) {
		// Fetch 1 follows connect, fetch 2 follows "cat".
		if n == 2 {
			close(held)
			<-gate
		}
	}
	c := connected(t, store, Options{})

	catDone := make(chan error, 1)
	go func() { catDone <- c.SubmitWord(context.Background(), "cat") }()
	<-held

	dogDone := make(chan error, 1)
	go func() { dogDone <- c.SubmitWord(context.Background(), "dog") }()

	// "dog" must not reach the store while the "cat" chain is in flight.
	time.Sleep(50 * time.Millisecond)
	for _, call := range store.Calls() {
		if call == "append:dog" {
			t.Fatal("second append overlapped the first re-fetch")
		}
	}

	close(gate)
	if err := <-catDone; err != nil {
		t.Fatalf("cat: %v", err)
	}
	if err := <-dogDone; err != nil {
		t.Fatalf("dog: %v", err)
	}

	got := words(c.View())
	if !reflect.DeepEqual(got, []string{"cat", "dog"}) {
		t.Errorf("final words = %v, want [cat dog]", got)
	}
	want := []string{"fetch", "append:cat", "fetch", "append:dog", "fetch"}
	if calls := store.Calls(); !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestCallerCancelDoesNotAbortChain(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.Seed(testutil.Addr, "alice")

	gate := make(chan struct{})
	store.BeforeFetch = func(n int) {
		if n == 2 {
			<-gate
		}
	}
	c := connected(t, store, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.SubmitWord(ctx, "late") }()

	testutil.Eventually(t, time.Second, 10*time.Millisecond, func() bool {
		return len(store.Calls()) >= 3
	}, "append not issued")
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	close(gate)

	testutil.Eventually(t, time.Second, 10*time.Millisecond, func() bool {
		return len(c.View().Entries) == 1
	}, "chain did not complete after caller gave up")
}

func TestClose(t *testing.T) {
	c := New(&testutil.Session{Silent: "alice"}, testutil.NewMemoryStore(), Options{Address: testutil.Addr, Logger: testutil.Logger()})
	c.Close()
	c.Close()
	if err := c.Refresh(context.Background()); !errors.Is(err, context.Canceled) {
		t.Errorf("after close: err = %v", err)
	}
}

package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureChannel records every delivered alert.
type captureChannel struct {
	mu     sync.Mutex
	name   string
	alerts []Alert
	fail   bool
}

func (c *captureChannel) Name() string {
	if c.name == "" {
		return "capture"
	}
	return c.name
}

func (c *captureChannel) Deliver(_ context.Context, a Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("delivery broken")
	}
	c.alerts = append(c.alerts, a)
	return nil
}

func (c *captureChannel) delivered() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Alert, len(c.alerts))
	copy(out, c.alerts)
	return out
}

// testManager builds a manager with a fake clock starting at a fixed
// instant. advance moves the clock.
func testManager(rules Rules, channels ...Channel) (*Manager, func(d time.Duration)) {
	m := NewManager(Config{
		Rules:    rules,
		Channels: channels,
		Logger:   slog.New(slog.DiscardHandler),
	})

	var mu sync.Mutex
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}
	return m, advance
}

func TestSend_CooldownSuppresses(t *testing.T) {
	ch := &captureChannel{}
	rules := Rules{SeverityError: {Cooldown: 15 * time.Minute}}
	m, advance := testManager(rules, ch)
	ctx := context.Background()

	require.True(t, m.Send(ctx, "db", SeverityError, "down", nil))

	// Anything strictly inside the window is suppressed and does not
	// grow the history.
	for i := 0; i < 5; i++ {
		advance(2 * time.Minute)
		assert.False(t, m.Send(ctx, "db", SeverityError, "still down", nil))
	}
	assert.Equal(t, 1, m.HistoryLen("db", SeverityError))
	assert.Len(t, ch.delivered(), 1)

	// Past the window the next alert records again.
	advance(6 * time.Minute) // total 16m since the recorded alert
	assert.True(t, m.Send(ctx, "db", SeverityError, "down again", nil))
	assert.Equal(t, 2, m.HistoryLen("db", SeverityError))
}

func TestSend_CooldownIsPerKey(t *testing.T) {
	ch := &captureChannel{}
	rules := Rules{
		SeverityError:   {Cooldown: 15 * time.Minute},
		SeverityWarning: {Cooldown: 15 * time.Minute},
	}
	m, _ := testManager(rules, ch)
	ctx := context.Background()

	assert.True(t, m.Send(ctx, "db", SeverityError, "down", nil))
	// Different severity, same service: separate key, not suppressed.
	assert.True(t, m.Send(ctx, "db", SeverityWarning, "slow", nil))
	// Different service, same severity: separate key.
	assert.True(t, m.Send(ctx, "cache", SeverityError, "down", nil))
}

func TestSend_HistoryBounded(t *testing.T) {
	ch := &captureChannel{}
	rules := Rules{SeverityInfo: {}} // no cooldown
	m, advance := testManager(rules, ch)
	ctx := context.Background()

	for i := 0; i < maxHistoryPerKey+20; i++ {
		require.True(t, m.Send(ctx, "svc", SeverityInfo, "tick", nil))
		advance(time.Second)
	}
	assert.Equal(t, maxHistoryPerKey, m.HistoryLen("svc", SeverityInfo))
}

func TestSend_DeliveryFailureDoesNotAffectRecording(t *testing.T) {
	ch := &captureChannel{fail: true}
	rules := Rules{SeverityError: {Cooldown: 15 * time.Minute}}
	m, advance := testManager(rules, ch)
	ctx := context.Background()

	// Delivery fails but Send still reports "not suppressed" and the
	// history entry sticks.
	assert.True(t, m.Send(ctx, "db", SeverityError, "down", nil))
	assert.Equal(t, 1, m.HistoryLen("db", SeverityError))

	// The recorded entry still drives cooldown.
	advance(time.Minute)
	assert.False(t, m.Send(ctx, "db", SeverityError, "down", nil))
}

func TestSend_FanOutIsBestEffort(t *testing.T) {
	broken := &captureChannel{name: "broken", fail: true}
	working := &captureChannel{name: "working"}
	rules := Rules{SeverityError: {Channels: []string{"broken", "working"}}}
	m, _ := testManager(rules, broken, working)

	assert.True(t, m.Send(context.Background(), "db", SeverityError, "down", nil))
	assert.Len(t, working.delivered(), 1, "failure on one channel must not block others")
}

func TestSend_UnknownChannelSkipped(t *testing.T) {
	ch := &captureChannel{}
	rules := Rules{SeverityError: {Channels: []string{"pager", "capture"}}}
	m, _ := testManager(rules, ch)

	assert.True(t, m.Send(context.Background(), "db", SeverityError, "down", nil))
	assert.Len(t, ch.delivered(), 1)
}

func TestSend_EscalatesAfterThreshold(t *testing.T) {
	ch := &captureChannel{}
	rules := Rules{
		SeverityError:    {Cooldown: 15 * time.Minute, EscalateAfter: 3},
		SeverityCritical: {Cooldown: 5 * time.Minute},
	}
	m, advance := testManager(rules, ch)
	ctx := context.Background()

	// Three recorded error alerts spaced 16 minutes apart: all clear the
	// cooldown, and the third crosses the escalation threshold.
	require.True(t, m.Send(ctx, "db", SeverityError, "down", nil))
	advance(16 * time.Minute)
	require.True(t, m.Send(ctx, "db", SeverityError, "down", nil))
	advance(16 * time.Minute)
	require.True(t, m.Send(ctx, "db", SeverityError, "down", nil))

	var criticals []Alert
	for _, a := range ch.delivered() {
		if a.Severity == SeverityCritical {
			criticals = append(criticals, a)
		}
	}
	require.Len(t, criticals, 1, "third recorded alert must escalate exactly once")
	assert.Equal(t, "db", criticals[0].Service)
	assert.Contains(t, criticals[0].Message, "3 error alerts")
	assert.Equal(t, "error", criticals[0].Details["escalated_from"])

	// A fourth error one minute later is inside the error cooldown:
	// suppressed, no new escalation.
	advance(time.Minute)
	assert.False(t, m.Send(ctx, "db", SeverityError, "down", nil))
}

func TestSend_NoEscalationOutsideWindow(t *testing.T) {
	ch := &captureChannel{}
	rules := Rules{SeverityError: {Cooldown: time.Minute, EscalateAfter: 3}}
	m, advance := testManager(rules, ch)
	ctx := context.Background()

	// Recorded alerts spread further than an hour apart never accumulate
	// toward the threshold.
	for i := 0; i < 5; i++ {
		require.True(t, m.Send(ctx, "db", SeverityError, "down", nil))
		advance(61 * time.Minute)
	}
	for _, a := range ch.delivered() {
		assert.NotEqual(t, SeverityCritical, a.Severity)
	}
}

func TestSend_CriticalIsTerminal(t *testing.T) {
	ch := &captureChannel{}
	// Misconfigured: escalate_after on critical. Must still never recurse.
	rules := Rules{SeverityCritical: {EscalateAfter: 1}}
	m, advance := testManager(rules, ch)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, m.Send(ctx, "db", SeverityCritical, "down", nil))
		advance(time.Minute)
	}
	for _, a := range ch.delivered() {
		assert.Equal(t, SeverityCritical, a.Severity)
		assert.Nil(t, a.Details["escalated_from"])
	}
}

func TestSend_EscalationChainStopsAtCritical(t *testing.T) {
	ch := &captureChannel{}
	// Every level escalates after one alert: one info alert climbs the
	// whole ladder and stops.
	rules := Rules{
		SeverityInfo:     {EscalateAfter: 1},
		SeverityWarning:  {EscalateAfter: 1},
		SeverityError:    {EscalateAfter: 1},
		SeverityCritical: {EscalateAfter: 1},
	}
	m, _ := testManager(rules, ch)

	require.True(t, m.Send(context.Background(), "db", SeverityInfo, "hmm", nil))

	got := ch.delivered()
	require.Len(t, got, 4)
	want := []Severity{SeverityInfo, SeverityWarning, SeverityError, SeverityCritical}
	for i, a := range got {
		assert.Equal(t, want[i], a.Severity, "alert %d", i)
	}
}

func TestSend_ConcurrentSameKey(t *testing.T) {
	ch := &captureChannel{}
	rules := Rules{SeverityError: {Cooldown: 15 * time.Minute}}
	m, _ := testManager(rules, ch)

	var wg sync.WaitGroup
	delivered := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			delivered <- m.Send(context.Background(), "db", SeverityError, "down", nil)
		}()
	}
	wg.Wait()
	close(delivered)

	count := 0
	for d := range delivered {
		if d {
			count++
		}
	}
	assert.Equal(t, 1, count, "exactly one concurrent sender may pass the cooldown")
	assert.Equal(t, 1, m.HistoryLen("db", SeverityError))
}

func TestRecentAlerts(t *testing.T) {
	m, advance := testManager(Rules{SeverityInfo: {}}, &captureChannel{})
	ctx := context.Background()

	m.Send(ctx, "svc", SeverityInfo, "one", nil)
	advance(30 * time.Minute)
	m.Send(ctx, "svc", SeverityInfo, "two", nil)
	advance(45 * time.Minute)

	recent := m.RecentAlerts("svc", SeverityInfo, time.Hour)
	assert.Len(t, recent, 1, "only the second alert is inside the window")
}

func TestDefaultFallbackChannel(t *testing.T) {
	m := NewManager(Config{Logger: slog.New(slog.DiscardHandler)})
	// No channels configured: delivery lands on the log channel without
	// panicking and Send still reports delivery attempted.
	assert.True(t, m.Send(context.Background(), "svc", SeverityInfo, "hello", nil))
}

func ExampleManager_Send() {
	m := NewManager(Config{
		Rules:  Rules{SeverityWarning: {Cooldown: 10 * time.Minute}},
		Logger: slog.New(slog.DiscardHandler),
	})

	first := m.Send(context.Background(), "payments", SeverityWarning, "latency rising", nil)
	second := m.Send(context.Background(), "payments", SeverityWarning, "latency rising", nil)
	fmt.Println(first, second)
	// Output: true false
}

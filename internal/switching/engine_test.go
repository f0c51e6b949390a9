package switching

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/barriernet/barriernet/internal/reactor"
	"github.com/barriernet/barriernet/internal/screen"
	"github.com/stretchr/testify/require"
)

type recordingPrimary struct {
	mu     sync.Mutex
	leaves []screen.Name
	enters []enterCall
}

type enterCall struct {
	Screen screen.Name
	X, Y   int
	Seq    uint32
}

func (p *recordingPrimary) Leave(from screen.Name) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.leaves = append(p.leaves, from)
}

func (p *recordingPrimary) Enter(to screen.Name, x, y int, seq uint32, toggleMask uint16, saver bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enters = append(p.enters, enterCall{Screen: to, X: x, Y: y, Seq: seq})
}

func (p *recordingPrimary) entersLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.enters)
}

func twoScreenTopology(t *testing.T) (*screen.Topology, screen.Shape, screen.Shape) {
	t.Helper()
	topo := screen.NewTopology()
	primaryShape := screen.Shape{X: 0, Y: 0, W: 1920, H: 1080}
	p := screen.NewScreen(screen.Name("primary"))
	p.Connect(primaryShape)
	topo.AddScreen(p)

	rightShape := screen.Shape{X: 0, Y: 0, W: 1024, H: 768}
	r := screen.NewScreen(screen.Name("right"))
	r.Connect(rightShape)
	topo.AddScreen(r)

	require.NoError(t, topo.AddLink(screen.Name("primary"), 1 /* EdgeRight */, 0, 1, screen.Name("right")))
	return topo, primaryShape, rightShape
}

func TestSimpleSwitchRightScenario(t *testing.T) {
	topo, primaryShape, _ := twoScreenTopology(t)
	primary := &recordingPrimary{}
	rx := reactor.New(func(reactor.Event) {}, 4)
	e := NewEngine(topo, Policies{}, primary, rx, screen.Name("primary"))

	e.HandlePrimaryMotion(primaryShape, 2, 1919, 540)

	require.Equal(t, []screen.Name{screen.Name("primary")}, primary.leaves)
	require.Len(t, primary.enters, 1)
	require.Equal(t, screen.Name("right"), primary.enters[0].Screen)
	require.Equal(t, uint32(1), primary.enters[0].Seq)
}

func TestMonotoneEnterSequence(t *testing.T) {
	topo, primaryShape, rightShape := twoScreenTopology(t)
	require.NoError(t, topo.AddLink(screen.Name("right"), 0 /* EdgeLeft */, 0, 1, screen.Name("primary")))

	primary := &recordingPrimary{}
	rx := reactor.New(func(reactor.Event) {}, 4)
	e := NewEngine(topo, Policies{}, primary, rx, screen.Name("primary"))

	e.HandlePrimaryMotion(primaryShape, 2, 1919, 540)
	require.Equal(t, screen.Name("right"), e.Active())

	e.HandlePrimaryMotion(rightShape, 2, 0, 300)
	require.Equal(t, screen.Name("primary"), e.Active())

	require.Equal(t, uint32(1), primary.enters[0].Seq)
	require.Equal(t, uint32(2), primary.enters[1].Seq)
}

func TestSwitchIdempotentWhenLockedToScreen(t *testing.T) {
	topo, primaryShape, _ := twoScreenTopology(t)
	primary := &recordingPrimary{}
	rx := reactor.New(func(reactor.Event) {}, 4)
	e := NewEngine(topo, Policies{}, primary, rx, screen.Name("primary"))
	e.SetLockedToScreen(true)

	for i := 0; i < 5; i++ {
		e.HandlePrimaryMotion(primaryShape, 2, 1919, 540)
	}

	require.Empty(t, primary.leaves)
	require.Empty(t, primary.enters)
}

func TestTwoTapGuardRequiresSecondTapWithExit(t *testing.T) {
	topo, primaryShape, _ := twoScreenTopology(t)
	primary := &recordingPrimary{}
	rx := reactor.New(func(reactor.Event) {}, 4)
	e := NewEngine(topo, Policies{TwoTap: 200 * time.Millisecond}, primary, rx, screen.Name("primary"))

	// First touch: no switch yet.
	e.HandlePrimaryMotion(primaryShape, 2, 1919, 540)
	require.Empty(t, primary.enters)

	// Exit the zone.
	e.HandlePrimaryMotion(primaryShape, 2, 960, 540)

	// Second touch within the window: switches.
	e.HandlePrimaryMotion(primaryShape, 2, 1919, 540)
	require.Len(t, primary.enters, 1)
}

func TestTwoTapGuardRejectsWithoutIntermediateExit(t *testing.T) {
	topo, primaryShape, _ := twoScreenTopology(t)
	primary := &recordingPrimary{}
	rx := reactor.New(func(reactor.Event) {}, 4)
	e := NewEngine(topo, Policies{TwoTap: 200 * time.Millisecond}, primary, rx, screen.Name("primary"))

	e.HandlePrimaryMotion(primaryShape, 2, 1919, 540)
	e.HandlePrimaryMotion(primaryShape, 2, 1919, 541) // still in zone, no exit
	require.Empty(t, primary.enters)
}

// motionEvent is the tagged event posted to the reactor in these tests, so
// that HandlePrimaryMotion (and the Schedule/Cancel calls it makes) always
// runs on the reactor's own goroutine, per its documented contract.
type motionEvent struct {
	shape       screen.Shape
	zoneWidth   int
	x, y        int
}

func TestSwitchDelayConsumesMotionUntilTimerFires(t *testing.T) {
	topo, primaryShape, _ := twoScreenTopology(t)
	primary := &recordingPrimary{}
	var e *Engine
	rx := reactor.New(func(ev reactor.Event) {
		m := ev.(motionEvent)
		e.HandlePrimaryMotion(m.shape, m.zoneWidth, m.x, m.y)
	}, 4)
	e = NewEngine(topo, Policies{SwitchDelay: 20 * time.Millisecond}, primary, rx, screen.Name("primary"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = rx.Run(ctx) }()

	rx.Post(motionEvent{primaryShape, 2, 1919, 540})
	time.Sleep(5 * time.Millisecond)
	require.Equal(t, 0, primary.entersLen(), "switch must not happen before the delay elapses")

	require.Eventually(t, func() bool {
		return primary.entersLen() == 1
	}, time.Second, time.Millisecond)
}

func TestSwitchDelayCancelledOnZoneExit(t *testing.T) {
	topo, primaryShape, _ := twoScreenTopology(t)
	primary := &recordingPrimary{}
	var e *Engine
	rx := reactor.New(func(ev reactor.Event) {
		m := ev.(motionEvent)
		e.HandlePrimaryMotion(m.shape, m.zoneWidth, m.x, m.y)
	}, 4)
	e = NewEngine(topo, Policies{SwitchDelay: 20 * time.Millisecond}, primary, rx, screen.Name("primary"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = rx.Run(ctx) }()

	rx.Post(motionEvent{primaryShape, 2, 1919, 540})
	time.Sleep(5 * time.Millisecond)
	rx.Post(motionEvent{primaryShape, 2, 960, 540}) // exits before the timer fires

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 0, primary.entersLen())
}

package selection

import (
	"math"
	"testing"

	"github.com/dgallion1/fieldmark/internal/boxes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var page1 = Viewport{Page: 1, Width: 1000, Height: 800, Scale: 1.0}

func scenarioSet() boxes.Set {
	return boxes.LoadPages(boxes.AssignIDs(boxes.Result{Pages: []boxes.Page{
		{Boxes: []boxes.Box{
			{Page: 1, X: 100, Y: 100, Width: 200, Height: 50, Text: "Name"},
			{Page: 1, X: 100, Y: 300, Width: 200, Height: 50, Text: "Date"},
		}},
		{Boxes: []boxes.Box{
			{Page: 2, X: 500, Y: 500, Width: 100, Height: 100, Text: "Signature"},
		}},
	}}).Pages)
}

func TestHitTest_Scenario(t *testing.T) {
	c := New(page1)
	set := scenarioSet()

	b, ok := c.HitTest(set, 150, 90)
	require.True(t, ok)
	assert.Equal(t, "Name", b.Text)

	// The second box spans y 240..280 px on an 800 px tall page.
	b, ok = c.HitTest(set, 150, 250)
	require.True(t, ok)
	assert.Equal(t, "Date", b.Text)

	_, ok = c.HitTest(set, 150, 200)
	assert.False(t, ok)
}

func TestHitTest_IgnoresOtherPages(t *testing.T) {
	c := New(page1)
	_, ok := c.HitTest(scenarioSet(), 550, 440)
	assert.False(t, ok)
}

func TestHitTest_OverlapPrefersFirstInserted(t *testing.T) {
	set := boxes.LoadPages([]boxes.Page{{Boxes: []boxes.Box{
		{ID: "a", Page: 1, X: 0, Y: 0, Width: 500, Height: 500},
		{ID: "b", Page: 1, X: 100, Y: 100, Width: 100, Height: 100},
	}}})
	c := New(page1)
	for i := 0; i < 20; i++ {
		b, ok := c.HitTest(set, 150, 120)
		require.True(t, ok)
		assert.Equal(t, "a", b.ID)
	}
}

func TestPointerDown_Transitions(t *testing.T) {
	set := scenarioSet()
	c := New(page1)

	c.PointerDown(set, 150, 90)
	assert.Equal(t, StateBoxSelected, c.State())
	assert.Equal(t, "box-1-0", c.Selected())

	c.PointerDown(set, 150, 250)
	assert.Equal(t, StateBoxSelected, c.State(), "clicking another box reselects")
	assert.Equal(t, "box-1-1", c.Selected())

	c.PointerDown(set, 150, 250)
	assert.Equal(t, StateDragging, c.State())

	c.PointerUp()
	assert.Equal(t, StateBoxSelected, c.State())

	c.PointerDown(set, 900, 700)
	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, c.Selected())
}

func TestPointerLeave_EndsDrag(t *testing.T) {
	set := scenarioSet()
	c := New(page1)
	c.PointerDown(set, 150, 90)
	c.PointerDown(set, 150, 90)
	require.Equal(t, StateDragging, c.State())
	c.PointerLeave()
	assert.Equal(t, StateBoxSelected, c.State())
	assert.Equal(t, "box-1-0", c.Selected())
}

func TestPointerMove_OutsideDragIsNoop(t *testing.T) {
	set := scenarioSet()
	c := New(page1)
	c.PointerDown(set, 150, 90)
	next, changed := c.PointerMove(set, 300, 300)
	assert.False(t, changed)
	assert.Equal(t, set.All(), next.All())
}

func drag(t *testing.T, vp Viewport, steps [][2]float64) boxes.Box {
	t.Helper()
	set := boxes.LoadPages([]boxes.Page{{Boxes: []boxes.Box{
		{ID: "a", Page: 1, X: 100, Y: 100, Width: 100, Height: 100},
	}}})
	c := New(vp)
	start := [2]float64{
		(100 + 50) / 1000.0 * vp.Width * vp.Scale,
		(100 + 50) / 1000.0 * vp.Height * vp.Scale,
	}
	c.PointerDown(set, start[0], start[1])
	c.PointerDown(set, start[0], start[1])
	require.Equal(t, StateDragging, c.State())

	pos := start
	for _, s := range steps {
		pos[0] += s[0]
		pos[1] += s[1]
		set, _ = c.PointerMove(set, pos[0], pos[1])
	}
	c.PointerUp()
	b, ok := set.Get("a")
	require.True(t, ok)
	return b
}

func TestDrag_SingleStepMatchesFormula(t *testing.T) {
	vp := Viewport{Page: 1, Width: 612, Height: 792, Scale: 1.5}
	b := drag(t, vp, [][2]float64{{90, -45}})
	assert.Equal(t, 100+math.Round(90/1.5/612*1000), b.X)
	assert.Equal(t, 100+math.Round(-45/1.5/792*1000), b.Y)
}

func TestDrag_MultiStepMatchesSingleStepWithinRounding(t *testing.T) {
	vp := Viewport{Page: 1, Width: 612, Height: 792, Scale: 1.25}
	var steps [][2]float64
	for i := 0; i < 12; i++ {
		steps = append(steps, [2]float64{7.5, -3.25})
	}
	multi := drag(t, vp, steps)
	single := drag(t, vp, [][2]float64{{90, -39}})

	bound := 0.5 * float64(len(steps))
	assert.InDelta(t, single.X, multi.X, bound)
	assert.InDelta(t, single.Y, multi.Y, bound)
	assert.Equal(t, 100.0, multi.Width, "drag never resizes")
}

func TestDrag_BoxReplacedMidDrag(t *testing.T) {
	set := scenarioSet()
	c := New(page1)
	c.PointerDown(set, 150, 90)
	c.PointerDown(set, 150, 90)

	replaced := boxes.LoadPages(nil)
	next, changed := c.PointerMove(replaced, 200, 200)
	assert.False(t, changed)
	assert.Equal(t, 0, next.Len())
	assert.Equal(t, StateIdle, c.State())
}

func TestSelect_SamePage(t *testing.T) {
	c := New(page1)
	page, ok := c.Select(scenarioSet(), "box-1-1")
	require.True(t, ok)
	assert.Zero(t, page)
	assert.Equal(t, "box-1-1", c.Selected())
}

func TestSelect_OtherPageWaitsForRender(t *testing.T) {
	set := scenarioSet()
	c := New(page1)
	c.PointerDown(set, 150, 90)

	page, ok := c.Select(set, "box-2-0")
	require.True(t, ok)
	assert.Equal(t, 2, page)
	assert.Empty(t, c.Selected(), "selection is not visible before the page renders")
	assert.Equal(t, "box-2-0", c.Pending())

	assert.False(t, c.PageRendered(set, page1), "a render of the old page does not apply it")
	assert.Equal(t, "box-2-0", c.Pending())

	applied := c.PageRendered(set, Viewport{Page: 2, Width: 1000, Height: 800, Scale: 1})
	assert.True(t, applied)
	assert.Equal(t, "box-2-0", c.Selected())
	assert.Equal(t, StateBoxSelected, c.State())
	assert.Empty(t, c.Pending())
}

func TestSelect_Unknown(t *testing.T) {
	c := New(page1)
	_, ok := c.Select(scenarioSet(), "missing")
	assert.False(t, ok)
}

func TestDefer_DropsMissingBox(t *testing.T) {
	c := New(Viewport{})
	c.Defer("missing")
	assert.False(t, c.PageRendered(scenarioSet(), page1))
	assert.Empty(t, c.Pending())
}

func TestViewportValid(t *testing.T) {
	assert.True(t, page1.Valid())
	assert.False(t, Viewport{Page: 1, Width: 0, Height: 1, Scale: 1}.Valid())
	assert.False(t, Viewport{}.Valid())
}

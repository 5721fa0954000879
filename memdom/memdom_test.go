package memdom

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livefir/livebind/dom"
)

func TestSetInnerHTMLAndLookup(t *testing.T) {
	doc := NewDocument()
	require.NoError(t, doc.Body().SetInnerHTML(`<div id="box-1" class="a"><input id="in-1" value="x"></div>`))

	box := doc.GetElementByID("box-1")
	require.NotNil(t, box)
	assert.Equal(t, "div", box.Tag())
	assert.Len(t, box.Children(), 1)

	input := doc.Element("in-1")
	require.NotNil(t, input)
	v, ok := input.Attribute("value")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	assert.Nil(t, doc.GetElementByID("missing"))
	assert.Nil(t, doc.GetElementByID(""))

	require.NoError(t, doc.Body().SetInnerHTML(`<p id="other"></p>`))
	assert.Nil(t, doc.GetElementByID("box-1"), "replaced nodes are detached")
	assert.Equal(t, `<p id="other"></p>`, doc.HTML())
}

func TestAppendHTML(t *testing.T) {
	doc := NewDocument()
	body := doc.Body()
	require.NoError(t, body.AppendHTML(`<b>1</b>`))
	require.NoError(t, body.AppendHTML(`<b>2</b>`))
	assert.Equal(t, `<b>1</b><b>2</b>`, body.InnerHTML())
	assert.Equal(t, "12", body.TextContent())

	body.Clear()
	assert.Equal(t, "", body.InnerHTML())
}

func TestObserveAttributes(t *testing.T) {
	doc := NewDocument()
	require.NoError(t, doc.Body().SetInnerHTML(`<div id="d" title="old"></div>`))
	el := doc.Element("d")

	var records []dom.MutationRecord
	obs := el.ObserveAttributes(func(rec dom.MutationRecord) {
		records = append(records, rec)
	})

	el.SetAttribute("title", "new")
	el.SetAttribute("title", "new")
	el.SetAttribute("data-x", "1")
	el.RemoveAttribute("data-x")
	el.RemoveAttribute("data-x")

	require.Len(t, records, 4, "removing an absent attribute is not a mutation")
	assert.Equal(t, "title", records[0].AttributeName)
	assert.Equal(t, "old", records[0].OldValue)
	assert.True(t, records[0].HadOldValue)
	assert.False(t, records[2].HadOldValue)
	assert.Equal(t, 1, doc.ObserverCount())

	obs.Disconnect()
	obs.Disconnect()
	el.SetAttribute("title", "after")
	assert.Len(t, records, 4)
	assert.Equal(t, 0, doc.ObserverCount())
}

func TestListeners(t *testing.T) {
	doc := NewDocument()
	require.NoError(t, doc.Body().SetInnerHTML(`<button id="b"></button>`))
	el := doc.Element("b")

	var calls []string
	first := el.AddEventListener("click", func(ev dom.Event) {
		calls = append(calls, "first:"+ev.Type())
	})
	el.AddEventListener("click", func(ev dom.Event) {
		calls = append(calls, "second")
	})
	el.AddEventListener("input", func(ev dom.Event) {
		calls = append(calls, "input")
	})

	n := el.Dispatch(NewEvent("click", map[string]any{"x": 1}))
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"first:click", "second"}, calls)

	first.Remove()
	first.Remove()
	calls = nil
	doc.Element("b").Dispatch(NewEvent("click", nil))
	assert.Equal(t, []string{"second"}, calls, "wrappers share listeners")
	assert.Equal(t, 2, doc.ListenerCount())
}

func TestListenerRemovedDuringDispatch(t *testing.T) {
	doc := NewDocument()
	require.NoError(t, doc.Body().SetInnerHTML(`<button id="b"></button>`))
	el := doc.Element("b")

	var second dom.Listener
	ran := false
	el.AddEventListener("click", func(dom.Event) { second.Remove() })
	second = el.AddEventListener("click", func(dom.Event) { ran = true })

	el.Dispatch(NewEvent("click", nil))
	assert.False(t, ran)
}

func TestStyleAndClasses(t *testing.T) {
	doc := NewDocument()
	body := doc.Body()

	body.SetStyle("background-color", "red")
	body.SetStyle("width", "10px")
	body.SetStyle("background-color", "blue")
	assert.Equal(t, "blue", body.Style("background-color"))
	style, _ := body.Attribute("style")
	assert.Equal(t, "background-color: blue; width: 10px;", style)

	body.SetStyle("background-color", "")
	body.SetStyle("width", "")
	_, ok := body.Attribute("style")
	assert.False(t, ok)

	body.SetClasses([]string{"a", " ", "b"})
	class, _ := body.Attribute("class")
	assert.Equal(t, "a b", class)
	body.SetClasses(nil)
	_, ok = body.Attribute("class")
	assert.False(t, ok)
}

func TestEventSerialize(t *testing.T) {
	ev := NewEvent("change", map[string]any{"value": "3", "type": "ignored"})
	data := ev.Serialize()
	assert.Equal(t, "change", data["type"])
	assert.Equal(t, "3", data["value"])
	assert.Equal(t, "ignored", ev.Fields["type"], "serialising does not mutate the event")
}

func TestInnerHTMLEscapes(t *testing.T) {
	doc := NewDocument()
	require.NoError(t, doc.Body().SetInnerHTML(`<i title="a&amp;b">&lt;x&gt;</i>`))
	out := doc.HTML()
	assert.True(t, strings.Contains(out, `title="a&amp;b"`), out)
	assert.True(t, strings.Contains(out, `&lt;x&gt;`), out)
}

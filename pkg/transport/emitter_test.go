package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitterOnEmitOff(t *testing.T) {
	var e Emitter
	var got []string

	id1 := e.On("SceneListChanged", func(ev Event) { got = append(got, "first:"+ev.Name) })
	e.On("SceneListChanged", func(ev Event) { got = append(got, "second:"+ev.Name) })
	e.On("InputCreated", func(ev Event) { got = append(got, "other") })

	e.Emit(Event{Name: "SceneListChanged"})
	assert.Equal(t, []string{"first:SceneListChanged", "second:SceneListChanged"}, got)
	assert.Equal(t, 2, e.Count("SceneListChanged"))

	got = nil
	e.Off(id1)
	e.Off(id1)
	e.Off(ListenerID(999))
	e.Emit(Event{Name: "SceneListChanged"})
	assert.Equal(t, []string{"second:SceneListChanged"}, got)
	assert.Equal(t, 1, e.Count("SceneListChanged"))
}

func TestEmitterAllEvents(t *testing.T) {
	var e Emitter
	var names []string
	e.On(AllEvents, func(ev Event) { names = append(names, ev.Name) })

	e.Emit(Event{Name: "A"})
	e.Emit(Event{Name: EventIdentified})
	assert.Equal(t, []string{"A", EventIdentified}, names)
}

func TestEmitterRecoversPanics(t *testing.T) {
	var e Emitter
	called := false
	e.On("X", func(Event) { panic("boom") })
	e.On("X", func(Event) { called = true })

	assert.NotPanics(t, func() { e.Emit(Event{Name: "X"}) })
	assert.True(t, called, "handlers after a panicking one still run")
}

func TestEmitterHandlerMayUnsubscribe(t *testing.T) {
	var e Emitter
	var id ListenerID
	calls := 0
	id = e.On("X", func(Event) {
		calls++
		e.Off(id)
	})

	e.Emit(Event{Name: "X"})
	e.Emit(Event{Name: "X"})
	assert.Equal(t, 1, calls)
}

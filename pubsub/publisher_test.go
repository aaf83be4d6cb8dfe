package pubsub

import "testing"

func TestSubscribeUnsubscribeReturnValues(t *testing.T) {
	p := New()
	cb := func(Event) {}

	if !p.Subscribe(cb) {
		t.Fatalf("expected first subscribe to succeed")
	}
	if p.Subscribe(cb) {
		t.Fatalf("expected duplicate subscribe to fail")
	}
	if !p.IsSubscribed(cb) {
		t.Fatalf("expected cb to be subscribed")
	}
	if !p.Unsubscribe(cb) {
		t.Fatalf("expected unsubscribe to succeed")
	}
	if p.Unsubscribe(cb) {
		t.Fatalf("expected second unsubscribe to fail")
	}
}

func TestTriggerDispatchesToAllSubscribers(t *testing.T) {
	p := New()
	var got []int
	p.Subscribe(func(e Event) { got = append(got, e.(int)) })
	p.Subscribe(func(e Event) { got = append(got, e.(int)*10) })

	p.Trigger(1)

	if len(got) != 2 || got[0] != 1 || got[1] != 10 {
		t.Fatalf("unexpected dispatch result: %#v", got)
	}
}

func TestMutateDuringTriggerDoesNotAffectCurrentDispatch(t *testing.T) {
	p := New()
	var order []string

	var second Callback = func(Event) { order = append(order, "second") }

	var first Callback
	first = func(Event) {
		order = append(order, "first")
		// Subscribing a brand new callback mid-dispatch must not affect
		// this Trigger's recipient set.
		p.Subscribe(func(Event) { order = append(order, "late") })
		// Unsubscribing another callback mid-dispatch must not prevent it
		// from being called during this Trigger either.
		p.Unsubscribe(second)
	}

	p.Subscribe(first)
	p.Subscribe(second)

	p.Trigger(nil)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("unexpected dispatch order: %#v", order)
	}

	order = nil
	p.Trigger(nil)
	if len(order) != 2 || order[0] != "first" || order[1] != "late" {
		t.Fatalf("expected 'first' then the previously-late subscriber: %#v", order)
	}
}

func TestLen(t *testing.T) {
	p := New()
	if p.Len() != 0 {
		t.Fatalf("expected empty publisher")
	}
	p.Subscribe(func(Event) {})
	p.Subscribe(func(Event) {})
	if p.Len() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", p.Len())
	}
}

package query

import (
	"context"
	"testing"
	"time"
)

func TestBinding_DiscardsSupersededResponses(t *testing.T) {
	c := NewClient(context.Background())
	defer c.Close()

	slow := &countingFetcher{release: make(chan struct{}), value: []string{"7d"}}
	fast := &countingFetcher{value: []string{"30d"}}
	opts := Options{StaleTime: time.Minute, Enabled: true}

	b := NewBinding(New(c, Key{"chartData", "bitcoin", 7}, opts, slow.Fetch))
	defer b.Close()
	eventually(t, func() bool { return slow.calls.Load() == 1 }, "first request not started")

	b.Rebind(New(c, Key{"chartData", "bitcoin", 30}, opts, fast.Fetch))
	eventually(t, func() bool { return b.State().HasData }, "rebound query never loaded")

	close(slow.release)
	eventually(t, func() bool {
		return New(c, Key{"chartData", "bitcoin", 7}, opts, slow.Fetch).Peek().HasData
	}, "superseded request did not finish")

	st := b.State()
	if st.Data[0] != "30d" {
		t.Errorf("binding shows superseded data %v", st.Data)
	}
	if b.Key() != "chartData:bitcoin:30" {
		t.Errorf("unexpected key %s", b.Key())
	}
	if c.Observers(Key{"chartData", "bitcoin", 7}) != 0 {
		t.Error("old key should have no observers")
	}
}

func TestBinding_AfterClose(t *testing.T) {
	c := NewClient(context.Background())
	defer c.Close()

	f := &countingFetcher{value: []string{"bitcoin"}}
	b := NewBinding(New(c, Key{"coinData", "bitcoin"}, Options{StaleTime: time.Minute, Enabled: true}, f.Fetch))
	eventually(t, func() bool { return b.State().HasData }, "binding never loaded")

	b.Close()
	if st := b.State(); st.HasData || st.Err != nil {
		t.Errorf("closed binding should report the zero state, got %+v", st)
	}
	if k := b.Key(); k != "" {
		t.Errorf("closed binding should have no key, got %q", k)
	}
	if c.Observers(Key{"coinData", "bitcoin"}) != 0 {
		t.Error("closed binding still observes its key")
	}
	b.Close()
}

package blocking

import (
	"context"
	"sync"
)

// FakeInvoker registra las llamadas y responde con Respond (o un delta vacío).
type FakeInvoker struct {
	mu      sync.Mutex
	calls   []FakeCall
	Respond func(uri string, ev Event) (*Delta, error)
}

// FakeCall es una invocación registrada.
type FakeCall struct {
	URI   string
	Event Event
}

func (f *FakeInvoker) Invoke(_ context.Context, uri string, ev Event) (*Delta, error) {
	f.mu.Lock()
	acc := ev.Account
	if acc != nil {
		ev.Account = acc.Clone()
	}
	f.calls = append(f.calls, FakeCall{URI: uri, Event: ev})
	respond := f.Respond
	f.mu.Unlock()

	if respond == nil {
		return &Delta{}, nil
	}
	return respond(uri, ev)
}

// Calls devuelve una copia de las invocaciones registradas.
func (f *FakeInvoker) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}

// Triggers lista los triggers invocados, en orden.
func (f *FakeInvoker) Triggers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Event.Trigger
	}
	return out
}

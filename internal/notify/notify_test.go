package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ayusman/shrimp-sentry/internal/plugin"
)

// recorder is a Notifier that remembers what it received.
type recorder struct {
	got []Notification
	err error
}

func (r *recorder) Notify(_ context.Context, n Notification) error {
	r.got = append(r.got, n)
	return r.err
}

func TestConstructors(t *testing.T) {
	a := Activated()
	if a.Kind != KindActivated || a.Title != "🦐 Shrimp Sentry Activated!" || a.Sound != "good.mp3" {
		t.Errorf("Activated() = %+v", a)
	}
	if a.Body != "You'll receive alerts like this when bad posture is detected. Stay safe and maintain good posture!" {
		t.Errorf("Activated().Body = %q", a.Body)
	}

	b := BadPosture()
	if b.Kind != KindBadPosture || b.Title != "🦐 Shrimp Alert!" || b.Sound != "bad.mp3" {
		t.Errorf("BadPosture() = %+v", b)
	}
	if b.Body != "Bad posture detected! Sit up straight." {
		t.Errorf("BadPosture().Body = %q", b.Body)
	}

	for _, n := range []Notification{a, b} {
		if n.OnlyWhenUnfocused {
			t.Errorf("%s notification should show even when the page has focus", n.Kind)
		}
		if n.Icon != "" {
			t.Errorf("%s icon = %q, want none", n.Kind, n.Icon)
		}
	}
}

func TestMulti(t *testing.T) {
	first := &recorder{err: errors.New("first failed")}
	second := &recorder{}
	third := &recorder{err: errors.New("third failed")}

	err := Multi{first, nil, second, third}.Notify(context.Background(), BadPosture())

	for i, r := range []*recorder{first, second, third} {
		if len(r.got) != 1 {
			t.Errorf("notifier %d received %d notifications, want 1", i, len(r.got))
		}
	}
	if errs := multierr.Errors(err); len(errs) != 2 {
		t.Errorf("expected 2 combined errors, got %v", err)
	}

	if err := (Multi{second}).Notify(context.Background(), Activated()); err != nil {
		t.Errorf("Notify() error = %v", err)
	}
}

func TestBestEffort(t *testing.T) {
	failing := &recorder{err: errors.New("redis down")}

	n := BestEffort("redis", failing, zap.NewNop())
	if err := n.Notify(context.Background(), BadPosture()); err != nil {
		t.Errorf("Notify() error = %v, want nil", err)
	}
	if len(failing.got) != 1 {
		t.Errorf("wrapped notifier received %d notifications, want 1", len(failing.got))
	}
}

type fakeSource struct {
	plugins []*plugin.Plugin
}

func (f *fakeSource) WithAction(action string) []*plugin.Plugin {
	var out []*plugin.Plugin
	for _, p := range f.plugins {
		if p.Manifest.Supports(action) {
			out = append(out, p)
		}
	}
	return out
}

type fakeRunner struct {
	requests  []*plugin.Request
	responses map[string]*plugin.Response
	errs      map[string]error
}

func (f *fakeRunner) Execute(_ context.Context, p *plugin.Plugin, req *plugin.Request) (*plugin.Response, error) {
	f.requests = append(f.requests, req)
	if err := f.errs[p.Manifest.Name]; err != nil {
		return nil, err
	}
	if resp, ok := f.responses[p.Manifest.Name]; ok {
		return resp, nil
	}
	return &plugin.Response{Success: true}, nil
}

func notifyPlugin(name string) *plugin.Plugin {
	return &plugin.Plugin{Manifest: plugin.Manifest{Name: name, Actions: []string{plugin.ActionNotify}}}
}

func TestPluginNotifier(t *testing.T) {
	t.Run("delivers to every notify plugin", func(t *testing.T) {
		source := &fakeSource{plugins: []*plugin.Plugin{
			notifyPlugin("desktop-notify"),
			{Manifest: plugin.Manifest{Name: "other", Actions: []string{"log"}}},
		}}
		runner := &fakeRunner{}

		n := NewPluginNotifier(source, runner, zap.NewNop())
		n.SetConfig("desktop-notify", json.RawMessage(`{"mute":true}`))

		if err := n.Notify(context.Background(), BadPosture()); err != nil {
			t.Fatalf("Notify() error = %v", err)
		}
		if len(runner.requests) != 1 {
			t.Fatalf("expected 1 plugin run, got %d", len(runner.requests))
		}

		req := runner.requests[0]
		if req.Action != plugin.ActionNotify || req.Title != "🦐 Shrimp Alert!" || req.OnlyWhenUnfocused {
			t.Errorf("unexpected request %+v", req)
		}
		if string(req.Config) != `{"mute":true}` {
			t.Errorf("config = %s", req.Config)
		}
	})

	t.Run("no plugins", func(t *testing.T) {
		n := NewPluginNotifier(&fakeSource{}, &fakeRunner{}, nil)
		if err := n.Notify(context.Background(), Activated()); !errors.Is(err, ErrNoPlugins) {
			t.Errorf("Notify() error = %v, want ErrNoPlugins", err)
		}
	})

	t.Run("disabled plugins are skipped", func(t *testing.T) {
		source := &fakeSource{plugins: []*plugin.Plugin{notifyPlugin("a"), notifyPlugin("b")}}
		runner := &fakeRunner{}

		n := NewPluginNotifier(source, runner, zap.NewNop())
		n.SetEnabled("a", false)
		if err := n.Notify(context.Background(), BadPosture()); err != nil {
			t.Fatalf("Notify() error = %v", err)
		}
		if len(runner.requests) != 1 {
			t.Fatalf("expected 1 plugin run, got %d", len(runner.requests))
		}

		n.SetEnabled("b", false)
		if err := n.Notify(context.Background(), BadPosture()); !errors.Is(err, ErrNoPlugins) {
			t.Errorf("Notify() error = %v, want ErrNoPlugins", err)
		}

		n.SetEnabled("a", true)
		if err := n.Notify(context.Background(), BadPosture()); err != nil {
			t.Errorf("Notify() after re-enable error = %v", err)
		}
	})

	t.Run("failures are combined", func(t *testing.T) {
		source := &fakeSource{plugins: []*plugin.Plugin{notifyPlugin("a"), notifyPlugin("b"), notifyPlugin("c")}}
		runner := &fakeRunner{
			errs:      map[string]error{"a": errors.New("plugin a timed out")},
			responses: map[string]*plugin.Response{"b": {Success: false, Error: "no display"}},
		}

		err := NewPluginNotifier(source, runner, zap.NewNop()).Notify(context.Background(), BadPosture())
		if len(runner.requests) != 3 {
			t.Errorf("expected all 3 plugins to run, got %d", len(runner.requests))
		}
		if errs := multierr.Errors(err); len(errs) != 2 {
			t.Fatalf("expected 2 errors, got %v", err)
		}
		if !strings.Contains(err.Error(), "no display") {
			t.Errorf("expected plugin error text, got %v", err)
		}
	})
}

type fakePublisher struct {
	channel string
	message interface{}
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.message = message
	return redis.NewIntResult(1, f.err)
}

func TestRedisNotifier(t *testing.T) {
	pub := &fakePublisher{}
	n := NewRedisNotifier(pub, "")
	if n.Channel() != DefaultChannel {
		t.Errorf("Channel() = %q, want %q", n.Channel(), DefaultChannel)
	}

	note := BadPosture()
	note.SessionID = "session-1"
	if err := n.Notify(context.Background(), note); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if pub.channel != DefaultChannel {
		t.Errorf("published on %q", pub.channel)
	}
	payload, ok := pub.message.([]byte)
	if !ok {
		t.Fatalf("expected []byte payload, got %T", pub.message)
	}
	var got Notification
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.Kind != KindBadPosture || got.SessionID != "session-1" {
		t.Errorf("payload = %+v", got)
	}

	pub.err = errors.New("connection refused")
	if err := NewRedisNotifier(pub, "custom").Notify(context.Background(), note); err == nil {
		t.Error("expected publish error")
	}
	if pub.channel != "custom" {
		t.Errorf("published on %q, want custom", pub.channel)
	}
}

package signals

import (
	"errors"
	"testing"
	"time"

	"github.com/lorawan-server/lorawan-concentratord/internal/models"
)

func receive(t *testing.T, ch <-chan Signal) Signal {
	t.Helper()
	select {
	case sig := <-ch:
		return sig
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for signal")
	}
	return Signal{}
}

func TestStopFanOut(t *testing.T) {
	bus := NewBus()

	jit, err := bus.Subscribe("jit", KindStop)
	if err != nil {
		t.Fatalf("Subscribe(jit) error = %v", err)
	}
	cmd, err := bus.Subscribe("command", KindStop)
	if err != nil {
		t.Fatalf("Subscribe(command) error = %v", err)
	}

	if err := bus.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if sig := receive(t, jit); sig.Kind != KindStop {
		t.Errorf("jit received %s", sig)
	}
	if sig := receive(t, cmd); sig.Kind != KindStop {
		t.Errorf("command received %s", sig)
	}
}

func TestPublishFiltersKinds(t *testing.T) {
	bus := NewBus()

	stopOnly, _ := bus.Subscribe("loop", KindStop)
	control, _ := bus.Subscribe("main", KindConfiguration)

	cfg := &models.GatewayConfiguration{Version: "v1"}
	if err := bus.Publish(Configuration(cfg)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	sig := receive(t, control)
	if sig.Kind != KindConfiguration || sig.Configuration != cfg {
		t.Errorf("main received %+v", sig)
	}

	select {
	case sig := <-stopOnly:
		t.Errorf("stop subscriber received %s", sig)
	default:
	}
}

func TestPublishErrors(t *testing.T) {
	bus := NewBus()

	if err := bus.Stop(); !errors.Is(err, ErrNoSubscribers) {
		t.Errorf("Stop() without subscribers error = %v", err)
	}

	if _, err := bus.Subscribe("a"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if _, err := bus.Subscribe("a"); !errors.Is(err, ErrSubscriberExists) {
		t.Errorf("duplicate Subscribe() error = %v", err)
	}

	for i := 0; i < bufferSize; i++ {
		if err := bus.Stop(); err != nil {
			t.Fatalf("Stop() %d error = %v", i, err)
		}
	}
	if err := bus.Stop(); !errors.Is(err, ErrSubscriberFull) {
		t.Errorf("Stop() on full buffer error = %v", err)
	}
	if n, _ := bus.Dropped("a"); n != 1 {
		t.Errorf("Dropped() = %d, want 1", n)
	}

	if err := bus.Unsubscribe("a"); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if err := bus.Unsubscribe("a"); !errors.Is(err, ErrSubscriberNotFound) {
		t.Errorf("second Unsubscribe() error = %v", err)
	}

	bus.Close()
	if err := bus.Stop(); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Stop() after Close() error = %v", err)
	}
	if _, err := bus.Subscribe("b"); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Subscribe() after Close() error = %v", err)
	}
}

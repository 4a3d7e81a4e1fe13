package hal

import (
	"errors"
	"testing"
	"time"
)

func TestTxPacketTimeOnAir(t *testing.T) {
	pkt := TxPacket{
		Modulation: ModLoRa,
		Bandwidth:  125000,
		Datarate:   7,
		CodeRate:   CodeRate4_5,
		Payload:    make([]byte, 20),
	}

	toa, err := pkt.TimeOnAir()
	if err != nil {
		t.Fatalf("TimeOnAir() error = %v", err)
	}
	if want := 56576 * time.Microsecond; toa != want {
		t.Errorf("TimeOnAir() = %v, want %v", toa, want)
	}

	pkt.Modulation = 0
	if _, err := pkt.TimeOnAir(); !errors.Is(err, ErrUnsupportedModulation) {
		t.Errorf("TimeOnAir() with unknown modulation error = %v", err)
	}
}

func TestSimulatorCounterWraps(t *testing.T) {
	sim := NewSimulator(0xFFFFFFF0)
	time.Sleep(time.Millisecond)

	cnt, err := sim.GetInstCnt()
	if err != nil {
		t.Fatalf("GetInstCnt() error = %v", err)
	}
	if cnt >= 0xFFFFFFF0 {
		t.Errorf("GetInstCnt() = %d, expected counter to have wrapped", cnt)
	}
}

func TestSimulatorErrors(t *testing.T) {
	sim := NewSimulator(0)

	sim.SetCounterError(ErrCounter)
	if _, err := sim.GetInstCnt(); !errors.Is(err, ErrCounter) {
		t.Errorf("GetInstCnt() error = %v, want ErrCounter", err)
	}

	sim.SetSendError(ErrSend)
	if err := sim.Send(TxPacket{}); !errors.Is(err, ErrSend) {
		t.Errorf("Send() error = %v, want ErrSend", err)
	}
	if len(sim.Sent()) != 0 {
		t.Error("failed send must not be recorded")
	}

	sim.SetSendError(nil)
	payload := []byte{1, 2, 3}
	if err := sim.Send(TxPacket{Payload: payload}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	payload[0] = 9

	sent := sim.Sent()
	if len(sent) != 1 || sent[0].Payload[0] != 1 {
		t.Errorf("Sent() = %+v, expected a copied payload", sent)
	}
}

func TestCodeRateString(t *testing.T) {
	if CodeRate4_5.String() != "4/5" || CodeRate4_8.String() != "4/8" {
		t.Errorf("unexpected code rate strings %s %s", CodeRate4_5, CodeRate4_8)
	}
	if CodeRateUndefined.String() != "undefined" {
		t.Errorf("CodeRateUndefined.String() = %s", CodeRateUndefined)
	}
}

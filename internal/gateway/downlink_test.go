package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/lorawan-server/lorawan-concentratord/internal/jitqueue"
	"github.com/lorawan-server/lorawan-concentratord/internal/models"
)

func ackStatuses(ack *models.DownlinkTxAck) []models.TxAckStatus {
	out := make([]models.TxAckStatus, len(ack.Items))
	for i, item := range ack.Items {
		out[i] = item.Status
	}
	return out
}

func equalStatuses(a, b []models.TxAckStatus) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestHandleDownlink(t *testing.T) {
	const now = 1000000

	tests := []struct {
		name        string
		items       []models.DownlinkFrameItem
		want        []models.TxAckStatus
		wantOutcome models.TxAckStatus
		wantQueued  int
	}{
		{
			name:        "frequency out of range then ok",
			items:       []models.DownlinkFrameItem{loraItem(915000000), loraItem(868100000)},
			want:        []models.TxAckStatus{models.TxAckStatusTxFreq, models.TxAckStatusOK},
			wantOutcome: models.TxAckStatusOK,
			wantQueued:  1,
		},
		{
			name:        "items after ok are ignored",
			items:       []models.DownlinkFrameItem{loraItem(868100000), loraItem(868300000), loraItem(868500000)},
			want:        []models.TxAckStatus{models.TxAckStatusOK, models.TxAckStatusIgnored, models.TxAckStatusIgnored},
			wantOutcome: models.TxAckStatusOK,
			wantQueued:  1,
		},
		{
			name: "all rejected",
			items: []models.DownlinkFrameItem{
				delayedItem(868100000, now, 10*time.Millisecond),
				delayedItem(868100000, now, 400*time.Second),
			},
			want:        []models.TxAckStatus{models.TxAckStatusTooLate, models.TxAckStatusTooEarly},
			wantOutcome: models.TxAckStatusTooEarly,
		},
		{
			name:        "no items",
			want:        []models.TxAckStatus{},
			wantOutcome: models.TxAckStatusIgnored,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := jitqueue.New(jitqueue.DefaultConfig())
			sink := &fakeSink{}
			h := NewDownlinkHandler(testGatewayID, testRadios, 0, queue, &fakeCounter{now: now}, sink)

			ack, err := h.Handle(&models.DownlinkFrame{DownlinkID: 42, Items: tt.items})
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if ack.DownlinkID != 42 || ack.GatewayID != "0102030405060708" {
				t.Errorf("ack = %+v", ack)
			}
			if got := ackStatuses(ack); !equalStatuses(got, tt.want) {
				t.Errorf("statuses = %v, want %v", got, tt.want)
			}
			if queue.Len() != tt.wantQueued {
				t.Errorf("queue length = %d, want %d", queue.Len(), tt.wantQueued)
			}
			if sink.received != 1 || len(sink.statuses) != 1 || sink.statuses[0] != tt.wantOutcome {
				t.Errorf("stats received = %d, statuses = %v, want [%s]", sink.received, sink.statuses, tt.wantOutcome)
			}
		})
	}
}

func TestHandleDownlinkEnqueuesOnce(t *testing.T) {
	q := &fakeEnqueuer{results: []error{
		&jitqueue.StatusError{Status: models.TxAckStatusCollisionPacket},
		nil,
	}}
	h := NewDownlinkHandler(testGatewayID, testRadios, 2, q, &fakeCounter{now: 5000}, &fakeSink{})

	frame := &models.DownlinkFrame{
		DownlinkID: 7,
		Items:      []models.DownlinkFrameItem{loraItem(868100000), loraItem(868300000), loraItem(868500000)},
	}
	ack, err := h.Handle(frame)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	want := []models.TxAckStatus{models.TxAckStatusCollisionPacket, models.TxAckStatusOK, models.TxAckStatusIgnored}
	if got := ackStatuses(ack); !equalStatuses(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}
	if len(q.items) != 2 {
		t.Fatalf("enqueue calls = %d, want 2", len(q.items))
	}

	item := q.items[1]
	if item.DownlinkID != 7 || item.Packet.FreqHz != 868300000 {
		t.Errorf("enqueued item = %+v", item)
	}
	// 14 dBm EIRP minus 2 dBi antenna gain
	if item.Packet.RFPower != 12 {
		t.Errorf("RFPower = %d, want 12", item.Packet.RFPower)
	}
}

func TestHandleDownlinkTxPower(t *testing.T) {
	tests := []struct {
		name      string
		gain      int8
		power     int32
		want      []models.TxAckStatus
		wantPower int8
	}{
		{
			name:      "below int8 after gain",
			gain:      5,
			power:     -126,
			want:      []models.TxAckStatus{models.TxAckStatusTxPower, models.TxAckStatusOK},
			wantPower: 9,
		},
		{
			name:      "above int8 after negative gain",
			gain:      -3,
			power:     126,
			want:      []models.TxAckStatus{models.TxAckStatusTxPower, models.TxAckStatusOK},
			wantPower: 17,
		},
		{
			name:      "lowest value still in range",
			gain:      2,
			power:     -126,
			want:      []models.TxAckStatus{models.TxAckStatusOK, models.TxAckStatusIgnored},
			wantPower: -128,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeEnqueuer{}
			sink := &fakeSink{}
			first := loraItem(868100000)
			first.TxInfo.Power = tt.power

			h := NewDownlinkHandler(testGatewayID, testRadios, tt.gain, q, &fakeCounter{}, sink)
			ack, err := h.Handle(&models.DownlinkFrame{
				DownlinkID: 3,
				Items:      []models.DownlinkFrameItem{first, loraItem(868300000)},
			})
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := ackStatuses(ack); !equalStatuses(got, tt.want) {
				t.Errorf("statuses = %v, want %v", got, tt.want)
			}
			if len(q.items) != 1 {
				t.Fatalf("enqueue calls = %d, want 1", len(q.items))
			}
			if got := q.items[0].Packet.RFPower; got != tt.wantPower {
				t.Errorf("RFPower = %d, want %d", got, tt.wantPower)
			}
		})
	}
}

func TestHandleDownlinkUnknownChain(t *testing.T) {
	q := &fakeEnqueuer{}
	item := loraItem(868100000)
	item.TxInfo.RFChain = 2

	h := NewDownlinkHandler(testGatewayID, testRadios, 0, q, &fakeCounter{}, &fakeSink{})
	ack, err := h.Handle(&models.DownlinkFrame{Items: []models.DownlinkFrameItem{item}})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if ack.Items[0].Status != models.TxAckStatusTxFreq || len(q.items) != 0 {
		t.Errorf("status = %s, enqueue calls = %d", ack.Items[0].Status, len(q.items))
	}
}

func TestHandleDownlinkConversionError(t *testing.T) {
	q := &fakeEnqueuer{}
	sink := &fakeSink{}
	bad := loraItem(868100000)
	bad.TxInfo.Modulation = models.Modulation{}

	h := NewDownlinkHandler(testGatewayID, testRadios, 0, q, &fakeCounter{}, sink)
	ack, err := h.Handle(&models.DownlinkFrame{Items: []models.DownlinkFrameItem{loraItem(915000000), bad, loraItem(868100000)}})
	if !errors.Is(err, ErrMissingModulation) {
		t.Fatalf("Handle() error = %v, want %v", err, ErrMissingModulation)
	}
	if ack != nil {
		t.Errorf("ack = %+v, want nil", ack)
	}
	if len(q.items) != 0 {
		t.Errorf("enqueue calls = %d, want 0", len(q.items))
	}
	if IsFatal(err) {
		t.Error("conversion error must not be fatal")
	}
	if len(sink.statuses) != 0 {
		t.Errorf("status counted for aborted request: %v", sink.statuses)
	}
}

func TestHandleDownlinkCounterError(t *testing.T) {
	counter := &fakeCounter{err: errors.New("spi read failed")}
	h := NewDownlinkHandler(testGatewayID, testRadios, 0, &fakeEnqueuer{}, counter, &fakeSink{})

	_, err := h.Handle(&models.DownlinkFrame{Items: []models.DownlinkFrameItem{loraItem(868100000)}})
	if !IsFatal(err) {
		t.Fatalf("Handle() error = %v, want fatal", err)
	}
}

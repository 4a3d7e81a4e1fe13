package lorawan

import (
	"errors"
	"testing"
	"time"
)

func TestLoRaTimeOnAir(t *testing.T) {
	tests := []struct {
		name   string
		params LoRaParams
		want   time.Duration
	}{
		{
			name:   "SF7BW125 20 bytes",
			params: LoRaParams{SpreadingFactor: 7, Bandwidth: 125000, CodeRate: 1, PreambleSymbols: 8, PayloadSize: 20, CRC: true},
			want:   56576 * time.Microsecond,
		},
		{
			name:   "SF12BW125 12 bytes uses low data rate optimization",
			params: LoRaParams{SpreadingFactor: 12, Bandwidth: 125000, CodeRate: 1, PreambleSymbols: 8, PayloadSize: 12, CRC: true},
			want:   1155072 * time.Microsecond,
		},
		{
			name:   "SF7BW125 empty payload without crc",
			params: LoRaParams{SpreadingFactor: 7, Bandwidth: 125000, CodeRate: 1, PreambleSymbols: 8, PayloadSize: 0},
			// ceil((0-28+8+20)/28)=0 -> 8 payload symbols
			want: 20736 * time.Microsecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoRaTimeOnAir(tt.params)
			if err != nil {
				t.Fatalf("LoRaTimeOnAir() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("LoRaTimeOnAir() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoRaTimeOnAirInvalid(t *testing.T) {
	invalid := []LoRaParams{
		{SpreadingFactor: 13, Bandwidth: 125000, CodeRate: 1},
		{SpreadingFactor: 7, Bandwidth: 0, CodeRate: 1},
		{SpreadingFactor: 7, Bandwidth: 125000, CodeRate: 0},
		{SpreadingFactor: 7, Bandwidth: 125000, CodeRate: 1, PayloadSize: -1},
	}

	for _, p := range invalid {
		if _, err := LoRaTimeOnAir(p); !errors.Is(err, ErrInvalidAirtimeParams) {
			t.Errorf("LoRaTimeOnAir(%+v) error = %v, want ErrInvalidAirtimeParams", p, err)
		}
	}
}

func TestFSKTimeOnAir(t *testing.T) {
	got, err := FSKTimeOnAir(50000, 5, 10, true)
	if err != nil {
		t.Fatalf("FSKTimeOnAir() error = %v", err)
	}
	if want := 3360 * time.Microsecond; got != want {
		t.Errorf("FSKTimeOnAir() = %v, want %v", got, want)
	}

	if _, err := FSKTimeOnAir(0, 5, 10, true); !errors.Is(err, ErrInvalidAirtimeParams) {
		t.Errorf("FSKTimeOnAir() with zero bitrate error = %v", err)
	}
}

func TestParseEUI64(t *testing.T) {
	eui, err := ParseEUI64("0102030405060708")
	if err != nil {
		t.Fatalf("ParseEUI64() error = %v", err)
	}
	if eui != (EUI64{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Errorf("ParseEUI64() = %v", eui)
	}
	if eui.String() != "0102030405060708" {
		t.Errorf("String() = %s", eui.String())
	}

	if _, err := ParseEUI64("0102"); err == nil {
		t.Error("ParseEUI64() with short input should fail")
	}
}

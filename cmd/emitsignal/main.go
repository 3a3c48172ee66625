// Binary emitsignal writes a complete four-phase signal into a mailbox, for
// deployment drills against a running gate. It can emit UTF-16LE with a BOM to
// mimic the terminal's own output encoding.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"time"

	"github.com/rs/zerolog"

	"bosgate/internal/channel"
	"bosgate/internal/signal"
)

func main() {
	var (
		path      = flag.String("path", "signal.json", "mailbox path to write")
		symbol    = flag.String("symbol", "EURJPY", "instrument symbol")
		direction = flag.String("direction", "BULL", "BULL or BEAR")
		price     = flag.Float64("price", 171.250, "structure break price")
		offset    = flag.Float64("offset", 0.6, "trigger offset in price increments")
		utf16     = flag.Bool("utf16", false, "encode the payload as UTF-16LE with BOM")
	)
	flag.Parse()

	dir := signal.Direction(*direction)
	if !dir.Valid() {
		log.Fatalf("direction must be BULL or BEAR, got %q", *direction)
	}

	now := time.Now().UTC()
	stamp := func(offset time.Duration) string {
		return now.Add(offset).Format("2006-01-02T15:04:05")
	}
	step := *price * 0.0004
	if dir == signal.Bear {
		step = -step
	}

	sig := signal.Signal{
		Symbol:    *symbol,
		EmittedAt: now.Format(time.RFC3339),
		Direction: dir,
		Phases: signal.Phases{
			StructureBreak: &signal.PhaseRecord{Timestamp: stamp(-30 * time.Minute), Price: *price, Direction: dir},
			InitialBreak:   &signal.PhaseRecord{Timestamp: stamp(-20 * time.Minute), Price: *price + step},
			Retest:         &signal.PhaseRecord{Timestamp: stamp(-10 * time.Minute), Price: *price + step/2},
			OffsetTrigger: &signal.OffsetTrigger{
				Timestamp: stamp(0),
				Target:    *price + step/2 + step/4,
				Current:   *price + step/2 + step/3,
				Triggered: true,
			},
		},
		TriggerOffset: *offset,
		Triggered:     true,
	}

	ch := channel.New(*path, zerolog.Nop())
	if *utf16 {
		data, err := json.Marshal(sig)
		if err != nil {
			log.Fatalf("marshal: %v", err)
		}
		if err := ch.WriteRaw(encodeUTF16LE(data)); err != nil {
			log.Fatalf("write: %v", err)
		}
	} else if err := ch.Write(sig); err != nil {
		log.Fatalf("write: %v", err)
	}
	log.Printf("signal %s written to %s", sig.EmittedAt, *path)
}

func encodeUTF16LE(data []byte) []byte {
	out := make([]byte, 0, len(data)*2+2)
	out = append(out, 0xFF, 0xFE)
	for _, r := range string(data) {
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}

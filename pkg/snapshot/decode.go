package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/viralbet/fillsim/pkg/execution"
)

// number accepts a JSON string or number. Anything else reads as empty,
// which the simulator treats as zero.
type number string

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = number(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		*n = ""
		return nil
	}
	*n = number(num.String())
	return nil
}

type wireLevel struct {
	Price number `json:"price"`
	Size  number `json:"size"`
}

type wireBook struct {
	Bids      []wireLevel `json:"bids"`
	Asks      []wireLevel `json:"asks"`
	Timestamp number      `json:"timestamp"`
}

// Decode normalizes a raw feed payload into an OrderBook. The payload is a
// JSON object with bids/asks, or a JSON string holding that object.
// The returned time is zero when the payload carries no usable timestamp.
func Decode(raw []byte) (execution.OrderBook, time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return execution.OrderBook{}, time.Time{}, &DecodeError{Err: fmt.Errorf("empty payload")}
	}

	// Double-encoded payloads are unwrapped once.
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return execution.OrderBook{}, time.Time{}, &DecodeError{Err: err}
		}
		raw = bytes.TrimSpace([]byte(inner))
	}
	if len(raw) == 0 || raw[0] != '{' {
		return execution.OrderBook{}, time.Time{}, &DecodeError{Err: fmt.Errorf("expected a JSON object")}
	}

	var wb wireBook
	if err := json.Unmarshal(raw, &wb); err != nil {
		return execution.OrderBook{}, time.Time{}, &DecodeError{Err: err}
	}

	book := execution.OrderBook{
		Bids: toLevels(wb.Bids),
		Asks: toLevels(wb.Asks),
	}
	return book, parseMillis(string(wb.Timestamp)), nil
}

func toLevels(in []wireLevel) []execution.OrderLevel {
	out := make([]execution.OrderLevel, len(in))
	for i, l := range in {
		out[i] = execution.Level(string(l.Price), string(l.Size))
	}
	return out
}

func parseMillis(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// encode is the storage form of a snapshot: a plain JSON object that
// Decode reads back.
func encode(snap *Snapshot) ([]byte, error) {
	return json.Marshal(struct {
		Bids      []execution.OrderLevel `json:"bids"`
		Asks      []execution.OrderLevel `json:"asks"`
		Timestamp string                 `json:"timestamp"`
	}{
		Bids:      snap.Book.Bids,
		Asks:      snap.Book.Asks,
		Timestamp: strconv.FormatInt(snap.Timestamp.UnixMilli(), 10),
	})
}

package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/purchasewatch/backend/internal/domain"
)

func TestDecode_Config(t *testing.T) {
	ev, err := Decode([]byte(`{"D":"3", "T":"50"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.EventConfig, ev.Kind)
	assert.Equal(t, 3, ev.Degree)
	assert.Equal(t, 50, ev.Window)

	ev, err = Decode([]byte(`{"D":2,"T":10}`))
	require.NoError(t, err)
	assert.Equal(t, 2, ev.Degree)
	assert.Equal(t, 10, ev.Window)

	_, err = Decode([]byte(`{"D":"3"}`))
	require.ErrorIs(t, err, ErrMissingField)

	_, err = Decode([]byte(`{"D":"three","T":"50"}`))
	require.ErrorIs(t, err, ErrInvalidField)
}

func TestDecode_Purchase(t *testing.T) {
	ev, err := Decode([]byte(`{"event_type":"purchase", "timestamp":"2017-06-13 11:33:01", "id": "1", "amount": "16.83"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.EventPurchase, ev.Kind)
	assert.Equal(t, domain.UserID(1), ev.UserID)
	assert.InDelta(t, 16.83, ev.Amount, 1e-9)
	assert.Equal(t, time.Date(2017, 6, 13, 11, 33, 1, 0, time.UTC), ev.Timestamp)
	assert.Equal(t, "purchase", ev.RawType)
}

func TestDecode_PurchaseNumericFields(t *testing.T) {
	ev, err := Decode([]byte(`{"event_type":"purchase","timestamp":"2017-06-13T11:33:01Z","id":42,"amount":7.5}`))
	require.NoError(t, err)
	assert.Equal(t, domain.UserID(42), ev.UserID)
	assert.Equal(t, 7.5, ev.Amount)
}

func TestDecode_PurchaseTimestampForms(t *testing.T) {
	want := time.Date(2017, 6, 13, 11, 33, 2, 0, time.UTC)
	tests := map[string]string{
		"date time":      `"2017-06-13 11:33:02"`,
		"rfc3339":        `"2017-06-13T11:33:02Z"`,
		"rfc3339 offset": `"2017-06-13T13:33:02+02:00"`,
		"no zone":        `"2017-06-13T11:33:02"`,
		"epoch string":   `"1497353582"`,
		"epoch number":   `1497353582`,
	}
	for name, ts := range tests {
		t.Run(name, func(t *testing.T) {
			ev, err := Decode([]byte(`{"event_type":"purchase","timestamp":` + ts + `,"id":"2","amount":"10"}`))
			require.NoError(t, err)
			assert.True(t, want.Equal(ev.Timestamp), "got %v", ev.Timestamp)
		})
	}
}

func TestDecode_PurchaseUnreadableTimestampKept(t *testing.T) {
	ev, err := Decode([]byte(`{"event_type":"purchase","timestamp":"yesterday","id":"1","amount":"1"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.EventPurchase, ev.Kind)
	assert.True(t, ev.Timestamp.IsZero())
	assert.Equal(t, 1.0, ev.Amount)
}

func TestDecode_PurchaseErrors(t *testing.T) {
	tests := map[string]struct {
		line string
		want error
	}{
		"missing id":        {`{"event_type":"purchase","timestamp":"2017-06-13 11:33:01","amount":"1"}`, ErrMissingField},
		"missing amount":    {`{"event_type":"purchase","timestamp":"2017-06-13 11:33:01","id":"1"}`, ErrMissingField},
		"missing timestamp": {`{"event_type":"purchase","id":"1","amount":"1"}`, ErrMissingField},
		"bad id":            {`{"event_type":"purchase","timestamp":"2017-06-13 11:33:01","id":"x1","amount":"1"}`, ErrInvalidField},
		"negative id":       {`{"event_type":"purchase","timestamp":"2017-06-13 11:33:01","id":"-1","amount":"1"}`, ErrInvalidField},
		"bad amount":        {`{"event_type":"purchase","timestamp":"2017-06-13 11:33:01","id":"1","amount":"ten"}`, ErrInvalidField},
		"nan amount":        {`{"event_type":"purchase","timestamp":"2017-06-13 11:33:01","id":"1","amount":"NaN"}`, ErrInvalidField},
		"bool field":        {`{"event_type":"purchase","timestamp":"2017-06-13 11:33:01","id":true,"amount":"1"}`, ErrInvalidField},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(tt.line))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecode_Friendship(t *testing.T) {
	ev, err := Decode([]byte(`{"event_type":"befriend", "timestamp":"2017-06-13 11:33:01", "id1": "1", "id2": "2"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.EventBefriend, ev.Kind)
	assert.Equal(t, domain.UserID(1), ev.UserID)
	assert.Equal(t, domain.UserID(2), ev.OtherID)

	ev, err = Decode([]byte(`{"event_type":"unfriend","id1":"3","id2":"4"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.EventUnfriend, ev.Kind)
	assert.True(t, ev.Timestamp.IsZero())

	_, err = Decode([]byte(`{"event_type":"befriend","id1":"3"}`))
	require.ErrorIs(t, err, ErrMissingField)
}

func TestDecode_UnknownEventType(t *testing.T) {
	ev, err := Decode([]byte(`{"event_type":"poke","id1":"3","id2":"4"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.EventUnknown, ev.Kind)
	assert.Equal(t, "poke", ev.RawType)
}

func TestDecode_NotObject(t *testing.T) {
	for _, line := range []string{`[1,2]`, `"purchase"`, `null`, `{"event_type":`, `not json`} {
		_, err := Decode([]byte(line))
		assert.ErrorIs(t, err, ErrNotObject, line)
	}
}

func TestDecode_MissingEventType(t *testing.T) {
	_, err := Decode([]byte(`{"id":"1"}`))
	require.ErrorIs(t, err, ErrMissingEventType)
}

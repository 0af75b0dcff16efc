package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordSink struct {
	ops, loads int
	err        error
}

func (r *recordSink) RecordOperation(OperationEvent) error { r.ops++; return r.err }

func (r *recordSink) RecordDeviceLoad(DeviceLoadEvent) error { r.loads++; return nil }

type opsOnly struct{ ops int }

func (o *opsOnly) RecordOperation(OperationEvent) error { o.ops++; return nil }

func TestMultiSink(t *testing.T) {
	boom := errors.New("boom")
	s1 := &recordSink{err: boom}
	s2 := &opsOnly{}
	m := NewMultiSink(s1, s2)

	err := m.RecordOperation(OperationEvent{Operation: "dso-grid"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, s1.ops)
	assert.Equal(t, 1, s2.ops, "a failing sink does not stop the others")

	assert.NoError(t, m.RecordDeviceLoad(DeviceLoadEvent{DeviceID: "d"}))
	assert.Equal(t, 1, s1.loads)
	assert.NoError(t, m.RecordTrades(TradeEvent{}))
}

func TestEventHelpers(t *testing.T) {
	assert.Equal(t, "ok", OperationEvent{}.Status())
	assert.Equal(t, "error", OperationEvent{Error: "x"}.Status())
	assert.Equal(t, 6.0, DeviceLoadEvent{InitialKW: 10, CurrentKW: 4}.ReductionKW())
}

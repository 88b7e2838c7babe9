package sender

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncWaitJust(t *testing.T) {
	res := SyncWait(Just(42), nil)
	require.True(t, res.Ok)
	assert.Equal(t, 42, res.Value)
}

func TestSyncWaitJustErrorRethrows(t *testing.T) {
	wantErr := errors.New("boom")
	defer func() {
		rec := recover()
		require.NotNil(t, rec)
		swe, ok := rec.(*SyncWaitError)
		require.True(t, ok)
		assert.ErrorIs(t, swe, wantErr)
	}()
	SyncWait(JustError[int](wantErr), nil)
}

func TestSyncWaitJustStopped(t *testing.T) {
	res := SyncWait(JustStopped[int](), nil)
	assert.True(t, res.Stopped)
	assert.False(t, res.Ok)
}

func TestSyncWaitThen(t *testing.T) {
	res := SyncWait(Then(Just(21), func(x int) int { return x * 2 }), nil)
	require.True(t, res.Ok)
	assert.Equal(t, 42, res.Value)
}

func TestSyncWaitWhenAll2(t *testing.T) {
	res := SyncWait(WhenAll2(Just("a"), Just(114)), nil)
	require.True(t, res.Ok)
	assert.Equal(t, "a", res.Value.A)
	assert.Equal(t, 114, res.Value.B)
}

func TestSyncWaitWhenAnyPicksValueOverStopped(t *testing.T) {
	res := SyncWait(WhenAny2(Just(7), JustStopped[int]()), nil)
	// Both children complete synchronously inside Start, in slice order, so
	// Just(7) completes first and wins; JustStopped's completion loses.
	assert.True(t, res.Ok != res.Stopped)
	require.True(t, res.Ok)
	assert.Equal(t, 7, res.Value)
}

func TestUponErrorMapsToValue(t *testing.T) {
	s := UponError(JustError[int](errors.New("x")), func(error) int { return -1 })
	res := SyncWait(s, nil)
	require.True(t, res.Ok)
	assert.Equal(t, -1, res.Value)
}

func TestLetValueChains(t *testing.T) {
	s := LetValue(Just(1), func(v int) Sender[int] { return Just(v + 41) })
	res := SyncWait(s, nil)
	require.True(t, res.Ok)
	assert.Equal(t, 42, res.Value)
}

func TestStoppedAsOptional(t *testing.T) {
	res := SyncWait(StoppedAsOptional(JustStopped[int]()), nil)
	require.True(t, res.Ok)
	assert.False(t, res.Value.Ok)
}

func TestStoppedAsError(t *testing.T) {
	defer func() {
		rec := recover()
		require.NotNil(t, rec)
		swe := rec.(*SyncWaitError)
		assert.ErrorIs(t, swe, ErrStopped)
	}()
	SyncWait(StoppedAsError(JustStopped[int](), nil), nil)
}

func TestWhenAllSliceEmpty(t *testing.T) {
	res := SyncWait(WhenAllSlice[int](nil), nil)
	require.True(t, res.Ok)
	assert.Empty(t, res.Value)
}

func TestWhenAllWithVariantNeverFails(t *testing.T) {
	ss := []Sender[int]{Just(1), JustError[int](errors.New("x")), JustStopped[int]()}
	res := SyncWait(WhenAllWithVariant(ss), nil)
	require.True(t, res.Ok)
	require.Len(t, res.Value, 3)
	assert.Equal(t, VariantValue, res.Value[0].Kind)
	assert.Equal(t, VariantError, res.Value[1].Kind)
	assert.Equal(t, VariantStopped, res.Value[2].Kind)
}

func TestWhenAllSliceForwardsFirstError(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	ss := []Sender[int]{Just(1), JustError[int](errA), JustError[int](errB)}

	_, stopped, err := SyncWaitErr(WhenAllSlice(ss), nil)
	require.False(t, stopped)
	require.ErrorIs(t, err, errA)
}

func TestJoinCoordinatorDiagnosticsAggregatesAllErrors(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	c := newJoinCoordinator(2)

	assert.Nil(t, c.Diagnostics())

	c.recordError(errA)
	assert.Nil(t, c.Diagnostics(), "single error is not yet a diagnosable aggregate")

	c.recordError(errB)
	diag := c.Diagnostics()
	require.NotNil(t, diag)
	joinErr, ok := diag.(*JoinError)
	require.True(t, ok)
	assert.Equal(t, []error{errA, errB}, joinErr.Errors)
	assert.ErrorIs(t, joinErr, errA)
	assert.ErrorIs(t, joinErr, errB)

	// The completion itself still forwards only the first error (§4.2).
	err, stopped, ok := c.finalNonValue()
	require.True(t, ok)
	assert.False(t, stopped)
	assert.ErrorIs(t, err, errA)
}

func TestAnyCoordinatorDiagnosticsAggregatesAllErrors(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	c := newAnyCoordinator(2)

	assert.Nil(t, c.Diagnostics())
	c.recordError(errA)
	assert.Nil(t, c.Diagnostics())
	c.recordError(errB)

	diag := c.Diagnostics()
	require.NotNil(t, diag)
	joinErr, ok := diag.(*JoinError)
	require.True(t, ok)
	assert.Equal(t, []error{errA, errB}, joinErr.Errors)
}

func TestJoinCombinesSkippingNils(t *testing.T) {
	errA := errors.New("a failed")
	assert.Nil(t, Join(nil, nil))
	assert.Equal(t, &JoinError{Errors: []error{errA}}, Join(nil, errA, nil))
}

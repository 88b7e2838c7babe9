package sender

// WhenAllSlice starts every sender in ss in parallel. It completes with
// value(values) only if every child completes with value; the first
// non-value completion observed is remembered and delivered once every
// child has finished, and the shared internal stop source is tripped as
// soon as that happens to hurry the rest along (§4.2, §5).
func WhenAllSlice[T any](ss []Sender[T]) Sender[[]T] {
	return whenAllSliceSender[T]{ss: ss}
}

type whenAllSliceSender[T any] struct{ ss []Sender[T] }

func (w whenAllSliceSender[T]) Connect(r Receiver[[]T]) OperationState {
	n := len(w.ss)
	values := make([]T, n)
	coord := newJoinCoordinator(n)
	deliver := func() {
		if err, stopped, ok := coord.finalNonValue(); ok {
			if stopped {
				r.SetStopped()
			} else {
				r.SetError(err)
			}
			return
		}
		r.SetValue(values)
	}

	if n == 0 {
		return funcOp(func() { r.SetValue(values) })
	}

	ops := make([]OperationState, n)
	env := r.Env().WithStopToken(coord.source.Token())
	for i, s := range w.ss {
		i := i
		child := StopWhen(s, coord.source.Token())
		cr := NewReceiver[T](env,
			func(v T) {
				values[i] = v
				if coord.childDone() {
					deliver()
				}
			},
			func(err error) {
				coord.recordError(err)
				if coord.childDone() {
					deliver()
				}
			},
			func() {
				coord.recordStopped()
				if coord.childDone() {
					deliver()
				}
			},
		)
		ops[i] = child.Connect(cr)
	}
	return funcOp(func() {
		for _, op := range ops {
			op.Start()
		}
	})
}

// WhenAll2 runs a, b concurrently and completes with Pair2{a, b} iff both
// complete with value.
func WhenAll2[A, B any](a Sender[A], b Sender[B]) Sender[Pair2[A, B]] {
	return whenAll2Sender[A, B]{a: a, b: b}
}

type whenAll2Sender[A, B any] struct {
	a Sender[A]
	b Sender[B]
}

func (w whenAll2Sender[A, B]) Connect(r Receiver[Pair2[A, B]]) OperationState {
	var va A
	var vb B
	coord := newJoinCoordinator(2)
	deliver := func() {
		if err, stopped, ok := coord.finalNonValue(); ok {
			if stopped {
				r.SetStopped()
			} else {
				r.SetError(err)
			}
			return
		}
		r.SetValue(Pair2[A, B]{A: va, B: vb})
	}
	env := r.Env().WithStopToken(coord.source.Token())

	opA := StopWhen(w.a, coord.source.Token()).Connect(NewReceiver[A](env,
		func(v A) { va = v; if coord.childDone() { deliver() } },
		func(err error) { coord.recordError(err); if coord.childDone() { deliver() } },
		func() { coord.recordStopped(); if coord.childDone() { deliver() } },
	))
	opB := StopWhen(w.b, coord.source.Token()).Connect(NewReceiver[B](env,
		func(v B) { vb = v; if coord.childDone() { deliver() } },
		func(err error) { coord.recordError(err); if coord.childDone() { deliver() } },
		func() { coord.recordStopped(); if coord.childDone() { deliver() } },
	))

	return funcOp(func() {
		opA.Start()
		opB.Start()
	})
}

// WhenAll3 is WhenAll2 generalized to three senders.
func WhenAll3[A, B, C any](a Sender[A], b Sender[B], c Sender[C]) Sender[Pair3[A, B, C]] {
	return whenAll3Sender[A, B, C]{a: a, b: b, c: c}
}

type whenAll3Sender[A, B, C any] struct {
	a Sender[A]
	b Sender[B]
	c Sender[C]
}

func (w whenAll3Sender[A, B, C]) Connect(r Receiver[Pair3[A, B, C]]) OperationState {
	var va A
	var vb B
	var vc C
	coord := newJoinCoordinator(3)
	deliver := func() {
		if err, stopped, ok := coord.finalNonValue(); ok {
			if stopped {
				r.SetStopped()
			} else {
				r.SetError(err)
			}
			return
		}
		r.SetValue(Pair3[A, B, C]{A: va, B: vb, C: vc})
	}
	env := r.Env().WithStopToken(coord.source.Token())

	opA := StopWhen(w.a, coord.source.Token()).Connect(NewReceiver[A](env,
		func(v A) { va = v; if coord.childDone() { deliver() } },
		func(err error) { coord.recordError(err); if coord.childDone() { deliver() } },
		func() { coord.recordStopped(); if coord.childDone() { deliver() } },
	))
	opB := StopWhen(w.b, coord.source.Token()).Connect(NewReceiver[B](env,
		func(v B) { vb = v; if coord.childDone() { deliver() } },
		func(err error) { coord.recordError(err); if coord.childDone() { deliver() } },
		func() { coord.recordStopped(); if coord.childDone() { deliver() } },
	))
	opC := StopWhen(w.c, coord.source.Token()).Connect(NewReceiver[C](env,
		func(v C) { vc = v; if coord.childDone() { deliver() } },
		func(err error) { coord.recordError(err); if coord.childDone() { deliver() } },
		func() { coord.recordStopped(); if coord.childDone() { deliver() } },
	))

	return funcOp(func() {
		opA.Start()
		opB.Start()
		opC.Start()
	})
}

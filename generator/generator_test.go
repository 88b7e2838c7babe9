package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeneratorProducesInOrder(t *testing.T) {
	g := New(func(yield func(int)) {
		for i := 1; i <= 3; i++ {
			yield(i)
		}
	})

	var got []int
	for {
		v, ok := g.Next()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestGeneratorIsCold(t *testing.T) {
	started := false
	g := New(func(yield func(int)) {
		started = true
		yield(1)
	})
	assert.False(t, started, "body must not run before the first Next")

	_, ok := g.Next()
	assert.True(t, ok)
	assert.True(t, started)
}

func TestGeneratorCloseReleasesProducer(t *testing.T) {
	g := New(func(yield func(int)) {
		for i := 0; ; i++ {
			yield(i)
		}
	})
	v, ok := g.Next()
	assert.True(t, ok)
	assert.Equal(t, 0, v)
	g.Close()
	g.Close() // idempotent
}

func TestElementsOfDelegatesNestedGenerator(t *testing.T) {
	inner := func() *Generator[int] {
		return New(func(yield func(int)) {
			yield(10)
			yield(20)
		})
	}

	outer := New(func(yield func(int)) {
		yield(1)
		ElementsOf(yield, inner())
		yield(2)
	})

	var got []int
	for {
		v, ok := outer.Next()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 10, 20, 2}, got)
}

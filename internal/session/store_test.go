package session

import (
	"bytes"
	"errors"
	"testing"

	"thehub/internal/logger"

	"github.com/stretchr/testify/assert"
)

type brokenBackend struct{ panics bool }

func (b brokenBackend) Get(string) (string, bool, error) {
	if b.panics {
		panic("storage gone")
	}
	return "", false, errors.New("quota exceeded")
}

func (b brokenBackend) Set(string, string) error {
	if b.panics {
		panic("storage gone")
	}
	return errors.New("quota exceeded")
}

func (b brokenBackend) Delete(string) error { return errors.New("quota exceeded") }

func TestStore_RoundTrip(t *testing.T) {
	mem := NewMemory()
	s := New(mem, Keys{}, nil)

	s.Token().Set("tok-1")
	assert.Equal(t, "tok-1", s.Token().Get())
	assert.Equal(t, "", s.Cart().Get())

	s.Token().Clear()
	assert.Equal(t, "", s.Token().Get())
	assert.Equal(t, 0, mem.Len())
}

func TestStore_EmptyValueDeletes(t *testing.T) {
	mem := NewMemory()
	s := New(mem, Keys{Token: "t", Cart: "c"}, nil)

	s.Cart().Set("c1")
	_, ok, _ := mem.Get("c")
	assert.True(t, ok)

	s.Cart().Set("")
	_, ok, _ = mem.Get("c")
	assert.False(t, ok)
}

func TestStore_IndependentSlots(t *testing.T) {
	s := New(NewMemory(), DefaultKeys, nil)
	s.Token().Set("tok")
	s.Cart().Set("c1")

	s.Token().Clear()
	assert.Equal(t, "c1", s.Cart().Get())

	s.Clear()
	assert.Equal(t, "", s.Cart().Get())
}

func TestStore_NilBackend(t *testing.T) {
	s := New(nil, DefaultKeys, nil)
	s.Token().Set("tok")
	assert.Equal(t, "", s.Token().Get())
}

func TestStore_BackendErrorsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	s := New(brokenBackend{}, DefaultKeys, logger.NewWriter(&buf, "debug"))

	assert.NotPanics(t, func() {
		s.Token().Set("tok")
		assert.Equal(t, "", s.Token().Get())
		s.Cart().Clear()
	})
	assert.Contains(t, buf.String(), "quota exceeded")
}

func TestStore_BackendPanicsAreRecovered(t *testing.T) {
	var buf bytes.Buffer
	s := New(brokenBackend{panics: true}, DefaultKeys, logger.NewWriter(&buf, "debug"))

	assert.NotPanics(t, func() {
		s.Token().Set("tok")
		assert.Equal(t, "", s.Token().Get())
	})
	assert.Contains(t, buf.String(), "storage gone")
}

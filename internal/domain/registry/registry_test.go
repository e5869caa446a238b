package registry_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/verifactu/internal/domain"
	"github.com/jhoicas/verifactu/internal/domain/registry"
)

type item struct{ key string }

func newRegistry(calls *int32) *registry.Keyed[*item] {
	return registry.NewKeyed[*item](func(key string) (*item, error) {
		atomic.AddInt32(calls, 1)
		return &item{key: key}, nil
	})
}

func TestKeyed_GetOrCreateDevuelveLaMismaInstancia(t *testing.T) {
	var calls int32
	r := newRegistry(&calls)

	a, err := r.GetOrCreate("S1")
	require.NoError(t, err)
	b, err := r.GetOrCreate("S1")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, int32(1), calls)
}

func TestKeyed_CreateDuplicadoFalla(t *testing.T) {
	var calls int32
	r := newRegistry(&calls)

	_, err := r.Create("S1")
	require.NoError(t, err)
	_, err = r.Create("S1")
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	_, err = r.GetOrCreate("S2")
	require.NoError(t, err)
	_, err = r.Create("S2")
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
}

func TestKeyed_ClaveVacia(t *testing.T) {
	var calls int32
	r := newRegistry(&calls)

	_, err := r.GetOrCreate("")
	assert.ErrorIs(t, err, domain.ErrEmptyKey)
	_, err = r.Create("")
	assert.ErrorIs(t, err, domain.ErrEmptyKey)
	assert.Zero(t, calls)
}

func TestKeyed_ErrorDeFactoriaNoRegistra(t *testing.T) {
	boom := errors.New("boom")
	r := registry.NewKeyed[*item](func(key string) (*item, error) { return nil, boom })

	_, err := r.GetOrCreate("S1")
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, r.Len())
}

func TestKeyed_ConcurrenciaUnaSolaInstancia(t *testing.T) {
	var calls int32
	r := newRegistry(&calls)

	var wg sync.WaitGroup
	got := make([]*item, 50)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], _ = r.GetOrCreate("S1")
		}(i)
	}
	wg.Wait()

	for _, it := range got {
		assert.Same(t, got[0], it)
	}
	assert.Equal(t, int32(1), calls)
}

func TestKeyed_EachKeysRemove(t *testing.T) {
	var calls int32
	r := newRegistry(&calls)
	for _, k := range []string{"S3", "S1", "S2"} {
		_, err := r.GetOrCreate(k)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"S1", "S2", "S3"}, r.Keys())

	var seen []string
	r.Each(func(key string, v *item) { seen = append(seen, v.key) })
	assert.Equal(t, []string{"S1", "S2", "S3"}, seen)

	assert.True(t, r.Remove("S2"))
	assert.False(t, r.Remove("S2"))
	_, ok := r.Get("S2")
	assert.False(t, ok)
	assert.Equal(t, 2, r.Len())
}

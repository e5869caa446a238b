// Package registry garantiza una única instancia viva por clave (vendedor).
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jhoicas/verifactu/internal/domain"
)

// Factory construye la instancia asociada a una clave.
type Factory[T any] func(key string) (T, error)

// Keyed mapa clave → instancia protegido por su propio mutex, independiente de los
// cerrojos de cada instancia. Se construye al arrancar y se inyecta a quien lo necesite.
type Keyed[T any] struct {
	mu      sync.Mutex
	items   map[string]T
	factory Factory[T]
}

// NewKeyed crea un registro vacío con la factoría dada.
func NewKeyed[T any](factory Factory[T]) *Keyed[T] {
	return &Keyed[T]{items: make(map[string]T), factory: factory}
}

// GetOrCreate devuelve la instancia de la clave y la crea si no existe.
// La factoría se ejecuta con el mutex tomado: dos llamadas concurrentes no crean dos instancias.
func (r *Keyed[T]) GetOrCreate(key string) (T, error) {
	var zero T
	if key == "" {
		return zero, domain.ErrEmptyKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.items[key]; ok {
		return v, nil
	}
	v, err := r.factory(key)
	if err != nil {
		return zero, fmt.Errorf("registro %s: %w", key, err)
	}
	r.items[key] = v
	return v, nil
}

// Create crea la instancia; falla si la clave ya estaba registrada.
func (r *Keyed[T]) Create(key string) (T, error) {
	var zero T
	if key == "" {
		return zero, domain.ErrEmptyKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[key]; ok {
		return zero, fmt.Errorf("%w: %s", domain.ErrDuplicateKey, key)
	}
	v, err := r.factory(key)
	if err != nil {
		return zero, fmt.Errorf("registro %s: %w", key, err)
	}
	r.items[key] = v
	return v, nil
}

// Get devuelve la instancia si existe.
func (r *Keyed[T]) Get(key string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[key]
	return v, ok
}

// Keys claves registradas, ordenadas.
func (r *Keyed[T]) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.items))
	for k := range r.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Each recorre las instancias en orden de clave sobre una copia: fn puede bloquear
// sin retener el mutex del registro.
func (r *Keyed[T]) Each(fn func(key string, v T)) {
	r.mu.Lock()
	snapshot := make(map[string]T, len(r.items))
	for k, v := range r.items {
		snapshot[k] = v
	}
	r.mu.Unlock()

	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fn(k, snapshot[k])
	}
}

// Remove elimina la clave. Devuelve false si no existía.
func (r *Keyed[T]) Remove(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[key]; !ok {
		return false
	}
	delete(r.items, key)
	return true
}

// Len número de claves registradas.
func (r *Keyed[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

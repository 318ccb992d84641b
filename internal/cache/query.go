package cache

import (
	"context"
	"fmt"
	"time"
)

// State is a typed Snapshot.
type State[T any] struct {
	Data      T
	HasData   bool
	Err       error
	Loading   bool
	Stale     bool
	FetchedAt time.Time
}

// Query is the typed form of Store.Query.
func Query[T any](ctx context.Context, s *Store, key string, tags []Tag, fetch func(context.Context) (T, error)) (T, error) {
	v, err := s.Query(ctx, key, tags, erase(fetch))
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](key, v)
}

// Watch is the typed form of Store.Subscribe.
func Watch[T any](s *Store, key string, tags []Tag, fetch func(context.Context) (T, error), fn func(State[T])) *Subscription {
	return s.Subscribe(key, tags, erase(fetch), func(snap Snapshot) {
		fn(Typed[T](snap))
	})
}

// Mutate is the typed form of Store.Mutate.
func Mutate[T any](ctx context.Context, s *Store, invalidates []Tag, do func(context.Context) (T, error)) (T, error) {
	v, err := s.Mutate(ctx, invalidates, erase(do))
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T]("mutation", v)
}

// Typed converts a snapshot; data of another type is reported as an error.
func Typed[T any](snap Snapshot) State[T] {
	st := State[T]{
		HasData:   snap.HasData,
		Err:       snap.Err,
		Loading:   snap.Loading,
		Stale:     snap.Stale,
		FetchedAt: snap.FetchedAt,
	}
	if snap.HasData {
		data, err := cast[T](snap.Key, snap.Data)
		if err != nil {
			st.HasData = false
			st.Err = err
		}
		st.Data = data
	}
	return st
}

func erase[T any](fetch func(context.Context) (T, error)) FetchFunc {
	return func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}
}

func cast[T any](key string, v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	data, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache: entry %s holds %T, not %T", key, v, zero)
	}
	return data, nil
}

package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrNilConfig is returned when Load is called with a nil pointer.
var ErrNilConfig = errors.New("config: nil target")

var (
	dotenvOnce sync.Once
	cache      sync.Map // reflect.Type -> *entry
)

type entry struct {
	once  sync.Once
	value any
	err   error
}

// Load fills cfg from the environment. The first call for a type parses the
// environment (after loading .env if present); later calls copy the cached
// value. A failed parse is cached too.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return ErrNilConfig
	}

	dotenvOnce.Do(func() {
		// A missing .env file is fine: the environment may be set directly.
		_ = godotenv.Load()
	})

	typ := reflect.TypeFor[T]()
	v, _ := cache.LoadOrStore(typ, &entry{})
	e := v.(*entry)
	e.once.Do(func() {
		var loaded T
		if err := env.Parse(&loaded); err != nil {
			e.err = fmt.Errorf("config: failed to load %s: %w", typ, err)
			return
		}
		e.value = loaded
	})
	if e.err != nil {
		return e.err
	}

	*cfg = e.value.(T)
	return nil
}

// MustLoad is like Load but panics on failure. Use it during startup.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}

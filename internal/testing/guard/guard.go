// Package guard enables test mode unless the caller already chose a value.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if _, ok := os.LookupEnv("FIELDLINE_TEST_MODE"); !ok {
			_ = os.Setenv("FIELDLINE_TEST_MODE", "1")
		}
	})
}

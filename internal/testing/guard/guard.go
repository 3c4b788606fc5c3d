package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("HALCYON_TEST_MODE") == "" {
			_ = os.Setenv("HALCYON_TEST_MODE", "1")
		}
	})
}

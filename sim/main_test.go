package sim

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

// TestMain keeps search-space and bundle logging quiet unless DEBUG_TESTS is
// set, e.g. DEBUG_TESTS=1 go test ./sim/... -v
func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	os.Exit(m.Run())
}

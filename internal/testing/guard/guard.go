// Package guard is blank-imported by tests of main packages. It turns on test
// mode and fills the config values that Load requires.
package guard

import (
	"os"

	"github.com/odyssey-erp/ledgerdesk/internal/app"
)

var defaults = map[string]string{
	app.TestModeEnv:    "1",
	"ERP_API_BASE_URL": "http://127.0.0.1:0",
}

func init() {
	for key, value := range defaults {
		if _, ok := os.LookupEnv(key); !ok {
			_ = os.Setenv(key, value)
		}
	}
	app.RefreshTestMode()
}

package main

import (
	"testing"

	_ "github.com/odyssey-erp/ledgerdesk/internal/testing/guard"

	"github.com/odyssey-erp/ledgerdesk/internal/app"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	app.RefreshTestMode()
	if !app.InTestMode() {
		t.Fatal("expected test mode to be enabled by the guard import")
	}
	main()
}

func TestRunCostingUsage(t *testing.T) {
	if code := runCosting(nil); code != 2 {
		t.Fatalf("expected usage exit code 2, got %d", code)
	}
	if code := runCosting([]string{"other"}); code != 2 {
		t.Fatalf("expected usage exit code 2, got %d", code)
	}
}

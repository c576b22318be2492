//go:build !sqlite

package telemetry

import "fmt"

func newSQLiteStore(_ string) (Store, error) {
	return nil, fmt.Errorf("sqlite backend unavailable in this build; rebuild with -tags sqlite")
}

func DefaultStoreKind() string {
	return "memory"
}

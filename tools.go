//go:build tools

// Package relaychat declares tool dependencies for this module so that
// mockgen, invoked through go generate, is pinned in go.mod.
package relaychat

import (
	_ "go.uber.org/mock/mockgen"
)

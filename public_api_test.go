package goRBAC_test

import (
	"context"
	"testing"

	goRBAC "github.com/MrEthical07/goRBAC"
)

// This test guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = goRBAC.New
	_ = goRBAC.NewEngine
	_ = goRBAC.LoadPolicyFile
	_ = goRBAC.ParsePolicy

	var _ *goRBAC.Engine
	var _ goRBAC.Config
	var _ goRBAC.User
	var _ goRBAC.AuthorizationResult
	var _ goRBAC.State
	var _ goRBAC.Policy
	var _ goRBAC.AuditSink = goRBAC.NoOpSink{}
	var _ goRBAC.AuditFlusher = (*goRBAC.BufferedSink)(nil)

	var _ error = goRBAC.ErrCapacityExceeded
	var _ error = goRBAC.ErrDuplicateBit
	var _ error = goRBAC.ErrMalformedPermission
	var _ error = goRBAC.ErrUnknownRole
	var _ error = goRBAC.ErrInvalidConfig
	var _ error = goRBAC.ErrInvalidState

	var _ func(*goRBAC.Engine, goRBAC.User, string) bool = (*goRBAC.Engine).HasPermission
	var _ func(*goRBAC.Engine, goRBAC.User, string) goRBAC.AuthorizationResult = (*goRBAC.Engine).Authorize
	var _ func(*goRBAC.Engine, context.Context, goRBAC.User, string) goRBAC.AuthorizationResult = (*goRBAC.Engine).AuthorizeWithContext
	var _ func(*goRBAC.Engine) goRBAC.State = (*goRBAC.Engine).Serialize
	var _ func(*goRBAC.Engine, goRBAC.State) error = (*goRBAC.Engine).Deserialize
}

package tql

import (
	"context"
	"time"
)

// StatementInfo describes one statement execution to interceptors.
type StatementInfo struct {
	// Kind is the statement kind.
	Kind Kind
	// SQL is the rendered statement with placeholders.
	SQL string
	// Args are the bound arguments in placeholder order.
	Args []Arg
	// Seq is the 1-based number of the statement within its transaction.
	Seq int64
	// Targets are the tables the statement touches.
	Targets []*Table
	// Duration is the driver call time. It is zero before execution.
	Duration time.Duration
}

// Interceptor observes the statements executed by a DB. Interceptors are
// called on the goroutine executing the statement and must not block.
type Interceptor interface {
	BeforeExecute(ctx context.Context, info *StatementInfo)
	AfterExecute(ctx context.Context, info *StatementInfo, err error)
}

// InterceptorFuncs adapts functions to an Interceptor. Nil functions are
// skipped.
type InterceptorFuncs struct {
	Before func(ctx context.Context, info *StatementInfo)
	After  func(ctx context.Context, info *StatementInfo, err error)
}

// BeforeExecute calls f.Before.
func (f InterceptorFuncs) BeforeExecute(ctx context.Context, info *StatementInfo) {
	if f.Before != nil {
		f.Before(ctx, info)
	}
}

// AfterExecute calls f.After.
func (f InterceptorFuncs) AfterExecute(ctx context.Context, info *StatementInfo, err error) {
	if f.After != nil {
		f.After(ctx, info, err)
	}
}

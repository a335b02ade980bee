// Package capture records root calls of instrumented functions as entries.
//
// A Guard wraps each call. It tracks call-stack depth per target through a
// Scope, caps entries per target with a Quota, snapshots inputs before the
// call and the result after it, stamps the entry through an Assembler and
// hands it to a Sink. Func adapts plain Go functions to Callable.
package capture

// Package store implements the generic state container every feature module
// is built on.
//
// A Store holds one State value and composes three contracts supplied by the
// feature: a pure Reducer, an asynchronous Middleware and an optional
// Subscriber that bridges external event sources into dispatches.
//
// ARCHITECTURE:
//
// Single-Writer Section:
// Reductions run one at a time under a mutex. This ensures:
// - No overlapping reductions, no torn writes
// - Actions dispatched from one goroutine apply in submission order
// - The reduction has committed by the time Dispatch returns
//
// Dispatch Flow:
// 1. Dispatch(action) enters the single-writer section
// 2. The reducer computes the next state; a changed state is published
// 3. The reduction is stamped with Clock.Next() and reported to OnReduce hooks
// 4. The middleware runs on its own goroutine against the committed state
// 5. A follow-up action re-enters step 1 in the same flow, reading the
//    state current at that moment
//
// Reads never take the lock: State() loads an atomic pointer.
//
// Subscriptions and the change feed never run on the writer's goroutine.
// Subscription handlers run on an injected Scheduler (a SerialScheduler per
// store by default), and Watch() is fed by a notifier goroutine.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Every reduction is stamped with a monotonic seq counter. Use seq, never
// wall-clock time, to order events across concurrent dispatches.
//
// Flows:
// Each external Dispatch starts a flow; middleware follow-ups inherit its
// token. A flow may run at most MaxSteps reductions.
package store

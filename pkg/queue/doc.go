/*
Package queue provides a priority batch execution engine for sync jobs.

# Overview

A Queue holds WorkItems and runs them through a caller-supplied Processor:
- Priority ordering (CRITICAL first), FIFO within a priority
- Dependency gating: an item runs only after all its dependencies COMPLETED
- Bounded concurrency per batch
- Per-item timeout with context cancellation
- Classified retries with exponential backoff and a not-before constraint
- Point-in-time statistics and blocked-item diagnostics

# Lifecycle

	PENDING → PROCESSING → COMPLETED
	                     ↘ PENDING (retry after backoff)
	                     ↘ FAILED
	PROCESSING → CANCELLED (Stop or context cancellation)

# Usage

	q, err := queue.New(queue.DefaultConfig[Order, Receipt]())
	if err != nil {
		return err
	}

	_ = q.Add(
		queue.WorkItem[Order, Receipt]{ID: "orders", Priority: queue.PriorityHigh, Payload: o},
		queue.WorkItem[Order, Receipt]{ID: "invoices", Dependencies: []string{"orders"}},
	)

	items, err := q.Start(ctx, func(ctx context.Context, item queue.WorkItem[Order, Receipt]) (Receipt, error) {
		return push(ctx, item.Payload)
	})

A run ends when no PENDING item can become eligible. Items still PENDING at
that point are reported by Diagnose and counted in Stats().Blocked.

# Concurrency Safety

Stats, Items, Item and Diagnose may be called from any goroutine during a run.
Hooks (OnProgress, OnError) are called from worker goroutines and may run
concurrently with each other.
*/
package queue

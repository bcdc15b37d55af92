// Package coordinator implements the arbitration side of a prime-collection
// session: a fixed number of workers register, then take strict turns
// submitting signed primes until a target number of distinct primes has been
// accepted.
//
// # Overview
//
// A Coordinator is the only owner of session state. Workers never see it
// directly; they reach it through transport.Service, implemented here by
// Handler. The coordinator does not authenticate itself to workers and does
// not persist anything across restarts.
//
// # Architecture
//
//	┌────────────────────────────────────────┐
//	│              Coordinator               │
//	├────────────────────────────────────────┤
//	│  Registry   id → ClientRecord          │
//	│             (insertion ordered)        │
//	│  Queue      frozen copy of ids         │
//	│  Cursor     index into Queue           │
//	│  Ledger     accepted decimal texts     │
//	│  Phase      registering → processing   │
//	│                         → completed    │
//	├────────────────────────────────────────┤
//	│  one sync.Mutex guards all of the above│
//	└────────────────────────────────────────┘
//	        ▲                      ▲
//	        │ Handler              │ LivenessTracker
//	        │ (transport.Service)  │ (ping bookkeeping)
//
// # Session Phases
//
// Registering: Register assigns each new identifier an order equal to the
// registry size. The registration that brings the registry to
// Config.WorkerCount freezes the turn queue in registration order and moves
// the session to Processing. Identifiers registered after that keep their
// records but never join the queue.
//
// Processing: Submit admits a prime only when, in this order:
//  1. the submitter holds the turn (Queue[Cursor]), unless round-robin is off
//  2. the submitter is registered
//  3. the signature verifies against the registered public key
//  4. the exact decimal text is not already in the ledger
//
// Every rejection leaves the registry, cursor and ledger untouched. An
// acceptance inserts into the ledger, increments the submitter's score and
// advances the cursor modulo the queue length.
//
// Completed: the acceptance that brings the ledger to Config.PrimeLimit
// builds a Report, logs it and closes Done. No transition leaves Completed and
// every later Submit is answered with StatusCompleted. Terminating the process
// is left to whoever hosts the coordinator.
//
// # Deduplication
//
// The ledger compares texts, not numbers. "17" and "017" are distinct
// entries. Workers always send the canonical decimal form of a big.Int, so in
// practice the two notions agree.
//
// # Liveness
//
// LivenessTracker records heartbeats delivered through Handler.Ping and
// periodically flags workers that went quiet. Flagging is informational: a
// worker that dies while holding the turn stalls the session.
//
// # Usage
//
//	coord := coordinator.New(coordinator.Config{
//	    WorkerCount: 3,
//	    PrimeLimit:  120,
//	    RoundRobin:  true,
//	}, log)
//	tracker := coordinator.NewLivenessTracker(20*time.Second, log)
//	go tracker.Start(ctx)
//	handler := coordinator.NewHandler(coord, tracker)
//	// serve handler over httpjson and/or grpcjson, then:
//	<-coord.Done()
//	fmt.Println(coord.Report())
package coordinator

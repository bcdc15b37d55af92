// Package worker implements the submitting side of a prime-collection
// session. A Worker owns an RSA identity, registers with the coordinator,
// then repeatedly generates a 64-bit prime, signs its decimal text and submits
// it, waiting for its turn first when round-robin admission is on.
//
// Lifecycle:
//
//	w, err := worker.New(cfg, client, log)   // generates keys
//	err = w.Start(ctx)                       // heartbeat, register, auto-start
//	err = w.Wait()                           // auto-started loop result
//	err = w.Stop()                           // inactive, heartbeat off, close
//
// Protocol rejections such as a wrong turn or a duplicate are ordinary
// responses: they are counted in Stats and never retried. Only transport
// failures are retried, a bounded number of times with a fixed delay. Once a
// call exhausts its retries the loop ends with an error wrapping
// ErrStartSending; the worker does not restart it.
package worker

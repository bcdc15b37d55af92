package main

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/dreamware/primeturn/internal/config"
	"github.com/dreamware/primeturn/internal/protocol"
	"github.com/dreamware/primeturn/internal/signing"
	"github.com/dreamware/primeturn/internal/transport"
	"github.com/dreamware/primeturn/internal/transport/grpcjson"
	"github.com/dreamware/primeturn/internal/transport/httpjson"
)

func testConfig(clients, limit int) config.Coordinator {
	return config.Coordinator{
		Common: config.Common{
			Host:        "127.0.0.1",
			LogLevel:    "info",
			ClientCount: clients,
			RoundRobin:  true,
		},
		PrimeLimit:       limit,
		LivenessInterval: time.Second,
	}
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return ln
}

// startHost runs a host in the background and returns its HTTP and gRPC
// addresses plus the channel run's result arrives on.
func startHost(t *testing.T, ctx context.Context, cfg config.Coordinator) (string, string, *test.Hook, <-chan error) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	httpLn, grpcLn := listen(t), listen(t)
	h := newHost(cfg, logrus.NewEntry(logger), httpLn, grpcLn)

	done := make(chan error, 1)
	go func() { done <- h.run(ctx) }()
	return httpLn.Addr().String(), grpcLn.Addr().String(), hook, done
}

func register(t *testing.T, client transport.Client, id string, keys *signing.KeyPair) {
	t.Helper()
	resp, err := client.Register(context.Background(), &protocol.RegisterRequest{
		ClientID:  id,
		PublicKey: base64.StdEncoding.EncodeToString(keys.PublicPEM),
	})
	if err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	if resp.Status != protocol.StatusRegistered {
		t.Fatalf("register %s: status %s", id, resp.Status)
	}
}

func signed(t *testing.T, id, prime string, keys *signing.KeyPair) *protocol.PrimeRequest {
	t.Helper()
	sig, err := signing.Sign(prime, keys.Private)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return &protocol.PrimeRequest{ClientID: id, PrimeNumber: prime, Signature: sig}
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("host did not stop")
		return nil
	}
}

func hasMessage(hook *test.Hook, msg string) bool {
	for _, e := range hook.AllEntries() {
		if e.Message == msg {
			return true
		}
	}
	return false
}

// TestHostStopsOnCompletion runs a two-prime session over HTTP and checks the
// host closes its listener once the limit is reached.
func TestHostStopsOnCompletion(t *testing.T) {
	keys, err := signing.GenerateKeyPair()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	httpAddr, _, hook, done := startHost(t, context.Background(), testConfig(1, 2))

	client := httpjson.NewClient(httpAddr, 2*time.Second)
	defer client.Close()
	register(t, client, "w1", keys)

	resp, err := client.SubmitPrime(context.Background(), signed(t, "w1", "17", keys))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !resp.Accepted() {
		t.Fatalf("expected acceptance, got %s: %s", resp.Status, resp.Message)
	}

	// The completing response races the listener closing.
	_, _ = client.SubmitPrime(context.Background(), signed(t, "w1", "19", keys))

	if err := waitRun(t, done); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !hasMessage(hook, "clientId:w1: 2 prime numbers sent") {
		t.Error("report line for w1 not logged")
	}
	if !hasMessage(hook, "Session completed, shutting down") {
		t.Error("completion not logged")
	}

	after := httpjson.NewClient(httpAddr, time.Second)
	defer after.Close()
	if _, err := after.Ping(context.Background(), &protocol.PingRequest{ClientID: "w1"}); err == nil {
		t.Error("expected the HTTP listener to be closed")
	}
}

// TestHostServesGRPC drives a whole session through the gRPC listener.
func TestHostServesGRPC(t *testing.T) {
	keys, err := signing.GenerateKeyPair()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	_, grpcAddr, hook, done := startHost(t, context.Background(), testConfig(2, 2))

	client, err := grpcjson.Dial(grpcAddr, grpcjson.WithCallTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	register(t, client, "a", keys)
	register(t, client, "b", keys)

	resp, err := client.SubmitPrime(context.Background(), signed(t, "b", "5", keys))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.Status != protocol.StatusWrongTurn || resp.Expected != "a" {
		t.Fatalf("expected wrong turn for a, got %s (%s)", resp.Status, resp.Expected)
	}

	resp, err = client.SubmitPrime(context.Background(), signed(t, "a", "5", keys))
	if err != nil || !resp.Accepted() {
		t.Fatalf("submit a: %v %+v", err, resp)
	}
	_, _ = client.SubmitPrime(context.Background(), signed(t, "b", "7", keys))

	if err := waitRun(t, done); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, line := range []string{"clientId:a: 1 prime numbers sent", "clientId:b: 1 prime numbers sent"} {
		if !hasMessage(hook, line) {
			t.Errorf("missing report line %q", line)
		}
	}
}

// TestHostDrainsOnCancel checks a canceled context stops the host cleanly
// before the session completes.
func TestHostDrainsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	httpAddr, _, hook, done := startHost(t, ctx, testConfig(3, 10))

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get("http://" + httpAddr + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("health never became ready: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := waitRun(t, done); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !hasMessage(hook, "Shutdown requested, draining") {
		t.Error("drain not logged")
	}
	if hasMessage(hook, "Session completed, shutting down") {
		t.Error("session should not have completed")
	}
}

func TestAppRejectsInvalidConfig(t *testing.T) {
	err := newApp().Run([]string{"coordinator", "--client-count", "0", "--log-level", "info"})
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

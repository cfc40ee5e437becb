/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package test runs embedded Nats servers for tests.
package test

import (
	"os"
	"testing"

	"github.com/nats-io/nats-server/v2/server"
	natstestserver "github.com/nats-io/nats-server/v2/test"

	natsclient "github.com/numaproj/stateful/pkg/shared/clients/nats"
)

// RunJetStreamServer starts a jetstream server on a random port, it is shut down and its store dir
// removed when the test finishes.
func RunJetStreamServer(t *testing.T) *server.Server {
	t.Helper()
	opts := natstestserver.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	storeDir, err := os.MkdirTemp("", "stateful-js")
	if err != nil {
		t.Fatalf("Error creating a temp dir: %v", err)
	}
	opts.StoreDir = storeDir
	s := natstestserver.RunServer(&opts)
	t.Cleanup(func() { shutdownJetStreamServer(t, s) })
	return s
}

// JetStreamClient returns a client connected to s, closed when the test finishes.
func JetStreamClient(t *testing.T, s *server.Server) *natsclient.Client {
	t.Helper()
	c := natsclient.NewTestClientWithServer(t, s)
	t.Cleanup(c.Close)
	return c
}

func shutdownJetStreamServer(t *testing.T, s *server.Server) {
	var sd string
	if config := s.JetStreamConfig(); config != nil {
		sd = config.StoreDir
	}
	s.Shutdown()
	s.WaitForShutdown()
	if sd != "" {
		if err := os.RemoveAll(sd); err != nil {
			t.Errorf("Failed to remove storage %q: %v", sd, err)
		}
	}
}

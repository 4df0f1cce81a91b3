package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/pixwallet/internal/testutil"
)

func Test_run(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	port, err := testutil.RandomPort()
	require.NoError(t, err, "failed to get random port to start server")
	listenAddr := fmt.Sprintf("localhost:%d", port)

	noEnv := func(string) string { return "" }

	t.Run("stop with signal", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)

		errCh := make(chan error, 1)
		go func() {
			errCh <- run(ctx, noEnv, os.Getwd, []string{
				"--address", listenAddr,
				"--log-level", "debug",
				"--environment", "dev",
				"--database", pg.DSN,
				"--gateway-url", "http://localhost:3000",
				"--gateway-ci", "ci",
				"--gateway-cs", "cs",
			})
		}()

		require.Eventually(t, func() bool {
			resp, err := http.Get("http://" + listenAddr + "/healthz")
			if err != nil {
				return false
			}
			defer func() { _ = resp.Body.Close() }()
			return resp.StatusCode == http.StatusOK
		}, 5*time.Second, 50*time.Millisecond, "server must become healthy")

		cancel()

		select {
		case err := <-errCh:
			require.NoError(t, err, "on correct stop should not return error")
		case <-time.After(10 * time.Second):
			t.Fatal("server did not stop")
		}
	})

	t.Run("refuse to start without gateway credentials", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond) // Half Second
		t.Cleanup(cancel)

		err := run(ctx, noEnv, os.Getwd, []string{
			"--address", listenAddr,
			"--database", pg.DSN,
		})

		require.Error(t, err, "on incorrect config should return error")
		require.Contains(t, err.Error(), "gateway client id and secret are required")
	})
}

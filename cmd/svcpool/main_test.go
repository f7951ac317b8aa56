package main

import (
	"testing"
	"time"

	"svcpool/server"
	"svcpool/service"

	"github.com/stretchr/testify/require"
)

// Commands share package state; the tests run them one after another.

func TestDemoLocal(t *testing.T) {
	rootCmd.SetArgs([]string{"demo", "--log-level", "error", "--timeout", "5s"})
	require.NoError(t, rootCmd.Execute())
}

func TestAddDial(t *testing.T) {
	svr := server.NewServer(service.DefaultRegistry(service.DefaultKey))
	go svr.Serve("tcp", "127.0.0.1:0", "", nil)
	<-svr.Ready()
	defer svr.Shutdown(time.Second)

	rootCmd.SetArgs([]string{"add", "12", "12", "--mode", "dial", "--address", svr.Addr().String(), "--log-level", "error"})
	require.NoError(t, rootCmd.Execute())
}

func TestInvalidFlags(t *testing.T) {
	rootCmd.SetArgs([]string{"add", "1", "2", "--mode", "nowhere", "--log-level", "error"})
	require.Error(t, rootCmd.Execute())
}

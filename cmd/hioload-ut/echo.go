// File: cmd/hioload-ut/echo.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/momentics/hioload-ut/api"
	"github.com/momentics/hioload-ut/facade"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var echoCmd = &cobra.Command{
	Use:   "echo",
	Short: "Echo server and client",
}

var echoServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Echo every packet back to its sender",
	RunE:  runEchoServe,
}

var echoClientCmd = &cobra.Command{
	Use:   "client",
	Short: "Send packets to an echo server and check the replies",
	RunE:  runEchoClient,
}

func init() {
	echoServeCmd.Flags().String("listen", "127.0.0.1:7000", "listen address (host:port or unix:/path)")
	echoClientCmd.Flags().String("addr", "127.0.0.1:7000", "server address (host:port or unix:/path)")
	echoClientCmd.Flags().String("message", "hello", "payload to send")
	echoClientCmd.Flags().Int("count", 1, "number of round trips")
	echoCmd.AddCommand(echoServeCmd, echoClientCmd)
}

func runEchoServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	listen, _ := cmd.Flags().GetString("listen")
	ln, err := a.e.Listen(parseAddr(listen))
	if err != nil {
		return multierr.Append(err, a.e.Shutdown())
	}
	bound, err := a.e.Addr(ln)
	if err != nil {
		return multierr.Append(err, a.e.Shutdown())
	}
	printField("listening", bound)
	a.e.Spawn(func(ctx context.Context) {
		if err := echoAccept(ctx, a.e, ln); err != nil {
			a.log.Error("accept loop stopped", "error", err)
		}
	})
	return a.run(cmd.Context())
}

// echoAccept spawns one echo thread per accepted connection until the
// listener is closed.
func echoAccept(ctx context.Context, e *facade.Engine, ln facade.Handle) error {
	for {
		conn, err := e.Accept(ctx, ln, 0, nil)
		if errors.Is(err, api.ErrListenerClosed) || errors.Is(err, api.ErrSchedulerClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		e.Spawn(func(ctx context.Context) { echoConn(ctx, e, conn) })
	}
}

func echoConn(ctx context.Context, e *facade.Engine, conn facade.Handle) {
	defer func() { _ = e.Close(conn) }()
	for {
		p, err := e.Receive(ctx, conn)
		if err != nil {
			return
		}
		if err := e.Send(conn, p); err != nil {
			return
		}
	}
}

type echoResult struct {
	rounds int
	took   time.Duration
	err    error
}

func runEchoClient(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	addr, _ := cmd.Flags().GetString("addr")
	msg, _ := cmd.Flags().GetString("message")
	count, _ := cmd.Flags().GetInt("count")

	var res echoResult
	a.e.Spawn(func(ctx context.Context) {
		res = echoRounds(ctx, a, parseAddr(addr), []byte(msg), count)
	})
	if err := a.run(cmd.Context()); err != nil {
		return err
	}
	if res.err != nil {
		return res.err
	}
	printField("round trips", res.rounds)
	printField("elapsed", res.took)
	if res.rounds > 0 {
		printField("per round", res.took/time.Duration(res.rounds))
	}
	fmt.Fprintln(cmd.OutOrStdout(), okColor.Sprint("ok"))
	return nil
}

func echoRounds(ctx context.Context, a *app, addr api.Address, msg []byte, count int) echoResult {
	start := time.Now()
	conn, err := a.e.Connect(ctx, addr, 0, nil)
	if err != nil {
		return echoResult{err: err}
	}
	defer func() { _ = a.e.Close(conn) }()
	for i := 0; i < count; i++ {
		if err := a.e.Send(conn, a.pool.FromBytes(msg)); err != nil {
			return echoResult{rounds: i, err: err}
		}
		p, err := a.e.Receive(ctx, conn)
		if err != nil {
			return echoResult{rounds: i, err: err}
		}
		same := bytes.Equal(p.Bytes(), msg)
		p.Release()
		if !same {
			return echoResult{rounds: i, err: fmt.Errorf("round %d: reply does not match request", i)}
		}
	}
	return echoResult{rounds: count, took: time.Since(start)}
}

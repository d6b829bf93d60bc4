// File: cmd/hioload-ut/kv.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/momentics/hioload-ut/api"
	"github.com/momentics/hioload-ut/kv"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var kvCmd = &cobra.Command{
	Use:   "kv",
	Short: "In-memory key-value server and client",
}

var kvServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve an in-memory key-value store",
	Args:  cobra.NoArgs,
	RunE:  runKVServe,
}

var kvGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the value of a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runKVClient(cmd, func(ctx context.Context, c *kv.Client) error {
			v, err := c.Get(ctx, args[0])
			if errors.Is(err, kv.ErrNotFound) {
				printField(args[0], errColor.Sprint("(not found)"))
				return nil
			}
			if err != nil {
				return err
			}
			printField(args[0], string(v))
			return nil
		})
	},
}

var kvSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runKVClient(cmd, func(ctx context.Context, c *kv.Client) error {
			if err := c.Set(ctx, args[0], []byte(args[1])); err != nil {
				return err
			}
			printField(args[0], okColor.Sprint("stored"))
			return nil
		})
	},
}

var kvDelCmd = &cobra.Command{
	Use:   "del <key>",
	Short: "Delete a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runKVClient(cmd, func(ctx context.Context, c *kv.Client) error {
			found, err := c.Del(ctx, args[0])
			if err != nil {
				return err
			}
			printField("deleted", found)
			return nil
		})
	},
}

var kvBenchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Issue SET/GET pairs and report the rate",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("requests")
		return runKVClient(cmd, func(ctx context.Context, c *kv.Client) error {
			start := time.Now()
			for i := 0; i < n; i++ {
				key := fmt.Sprintf("bench:%d", i)
				if err := c.Set(ctx, key, []byte(key)); err != nil {
					return err
				}
				if _, err := c.Get(ctx, key); err != nil {
					return err
				}
			}
			took := time.Since(start)
			printField("requests", 2*n)
			printField("elapsed", took)
			if took > 0 {
				printField("req/s", fmt.Sprintf("%.0f", float64(2*n)/took.Seconds()))
			}
			return nil
		})
	},
}

func init() {
	kvServeCmd.Flags().String("listen", "127.0.0.1:7001", "listen address (host:port or unix:/path)")
	for _, c := range []*cobra.Command{kvGetCmd, kvSetCmd, kvDelCmd, kvBenchCmd} {
		c.Flags().String("addr", "127.0.0.1:7001", "server address (host:port or unix:/path)")
	}
	kvBenchCmd.Flags().Int("requests", 1000, "number of SET/GET pairs")
	kvCmd.AddCommand(kvServeCmd, kvGetCmd, kvSetCmd, kvDelCmd, kvBenchCmd)
}

func runKVServe(cmd *cobra.Command, args []string) error {
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
	srv := kv.NewServer(a.e, nil, a.pool, a.log)
	a.e.Spawn(func(ctx context.Context) {
		if err := srv.Serve(ctx, ln); err != nil && !errors.Is(err, api.ErrSchedulerClosed) {
			a.log.Error("serve stopped", "error", err)
		}
	})
	return a.run(cmd.Context())
}

// runKVClient dials the server from a user thread, runs fn and closes the
// connection. The engine stops once fn returns.
func runKVClient(cmd *cobra.Command, fn func(ctx context.Context, c *kv.Client) error) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	addr, _ := cmd.Flags().GetString("addr")
	var opErr error
	a.e.Spawn(func(ctx context.Context) {
		c, err := kv.Dial(ctx, a.e, parseAddr(addr), a.pool)
		if err != nil {
			opErr = err
			return
		}
		opErr = multierr.Append(fn(ctx, c), c.Close())
	})
	return multierr.Append(a.run(cmd.Context()), opErr)
}

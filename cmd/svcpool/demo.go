package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"svcpool/client"
	"svcpool/config"

	"github.com/spf13/cobra"
	"github.com/uber-go/tally"
)

const demoText = "Hello, I am Spike!"

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the encrypt/decrypt/add walkthrough",
	Long: `Encrypts and decrypts a greeting on the SecurityCenter service and adds
two numbers on the Compute service, all over one shared connection. In local
mode the connection is then dropped on purpose to show the pool reconnecting.`,
	Args: cobra.NoArgs,
	RunE: runDemo,
}

func init() {
	config.SetupClientFlags(demoCmd)
}

func runDemo(cmd *cobra.Command, _ []string) error {
	scope := tally.NewTestScope("", nil)
	s, err := openSession(scope)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	security, err := client.DialSecurityCenter(ctx, s.pool)
	if err != nil {
		return err
	}
	defer security.Close(ctx)
	fmt.Printf("visit SecurityCenter: %s\n", demoText)
	enc, err := security.Encrypt(ctx, demoText)
	if err != nil {
		return err
	}
	fmt.Printf("encrypted: %s\n", strconv.Quote(enc))
	dec, err := security.Decrypt(ctx, enc)
	if err != nil {
		return err
	}
	fmt.Printf("decrypted: %s\n", dec)

	compute, err := client.DialCompute(ctx, s.pool)
	if err != nil {
		return err
	}
	// bound to this instance; the reconnect below replaces compute
	defer compute.Close(ctx)
	sum, err := compute.Add(ctx, 12, 12)
	if err != nil {
		return err
	}
	fmt.Printf("visit Compute: 12 + 12 = %d\n", sum)

	if s.local != nil {
		fmt.Printf("dropping %d connection(s) to the host\n", s.local.Kill())
		if _, err := compute.Add(ctx, 1, 1); err != nil {
			fmt.Printf("old handle: %v\n", err)
		}
		for s.pool.Attempts() < 2 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(10 * time.Millisecond):
			}
		}
		if compute, err = client.DialCompute(ctx, s.pool); err != nil {
			return err
		}
		sum, err = compute.Add(ctx, 12, 12)
		compute.Close(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("after reconnect: 12 + 12 = %d\n", sum)
	}

	printCounters(scope)
	return nil
}

func printCounters(scope tally.TestScope) {
	counters := scope.Snapshot().Counters()
	keys := make([]string, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if c := counters[k]; c.Value() > 0 {
			fmt.Printf("  %-40s %d\n", k, c.Value())
		}
	}
}

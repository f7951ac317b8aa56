package main

import (
	"fmt"
	"strconv"

	"svcpool/client"
	"svcpool/config"

	"github.com/spf13/cobra"
	"github.com/uber-go/tally"
)

var (
	addCmd = &cobra.Command{
		Use:   "add A B",
		Short: "Add two integers on the Compute service",
		Args:  cobra.ExactArgs(2),
		RunE:  runAdd,
	}
	encryptCmd = &cobra.Command{
		Use:   "encrypt TEXT",
		Short: "Encrypt text on the SecurityCenter service",
		Long:  "Encrypt text on the SecurityCenter service. The result is printed quoted since it is rarely printable.",
		Args:  cobra.ExactArgs(1),
		RunE:  runCipher(true),
	}
	decryptCmd = &cobra.Command{
		Use:   "decrypt TEXT",
		Short: "Decrypt text on the SecurityCenter service",
		Long:  "Decrypt text on the SecurityCenter service. TEXT may be a Go-quoted string as printed by encrypt.",
		Args:  cobra.ExactArgs(1),
		RunE:  runCipher(false),
	}
)

func init() {
	for _, cmd := range []*cobra.Command{addCmd, encryptCmd, decryptCmd} {
		config.SetupClientFlags(cmd)
	}
}

func runAdd(cmd *cobra.Command, args []string) error {
	a, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid A: %w", err)
	}
	b, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid B: %w", err)
	}

	s, err := openSession(tally.NoopScope)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	compute, err := client.DialCompute(ctx, s.pool)
	if err != nil {
		return err
	}
	defer compute.Close(ctx)
	sum, err := compute.Add(ctx, a, b)
	if err != nil {
		return err
	}
	fmt.Println(sum)
	return nil
}

func runCipher(encrypt bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		text := args[0]
		if unquoted, err := strconv.Unquote(text); err == nil {
			text = unquoted
		}

		s, err := openSession(tally.NoopScope)
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
		var out string
		if encrypt {
			out, err = security.Encrypt(ctx, text)
		} else {
			out, err = security.Decrypt(ctx, text)
		}
		if err != nil {
			return err
		}
		fmt.Println(strconv.Quote(out))
		return nil
	}
}

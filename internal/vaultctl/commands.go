package vaultctl

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	gs "github.com/dmitrijs2005/gophvault/internal/server/grpc"
	"github.com/dmitrijs2005/gophvault/internal/server/services"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newEnrollCommand(opts *rootOptions) *cobra.Command {
	var qrOut string

	cmd := &cobra.Command{
		Use:   "enroll <username>",
		Short: "Register a user and print their TOTP secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withVault(cmd, func(ctx context.Context, v *services.VaultService) error {
				e, err := v.Enroll(ctx, args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s User %s enrolled\n", uiSuccess.Sprint("✓"), uiHighlight.Sprint(args[0]))
				fmt.Fprintf(out, "Secret: %s\n", e.Secret)
				fmt.Fprintf(out, "URI:    %s\n", e.ProvisioningURI)

				if qrOut != "" {
					if err := os.WriteFile(qrOut, e.QRImage, 0o600); err != nil {
						return fmt.Errorf("write qr image: %w", err)
					}
					fmt.Fprintf(out, "%s QR code written to %s\n", uiInfo.Sprint("→"), qrOut)
					return nil
				}

				qr, err := qrcode.New(e.ProvisioningURI, qrcode.Medium)
				if err != nil {
					return err
				}
				fmt.Fprint(out, qr.ToSmallString(false))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&qrOut, "qr-out", "", "write the QR code PNG to this file instead of the terminal")
	return cmd
}

func newVerifyCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <username> [code]",
		Short: "Check a TOTP code for a user",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := ""
			if len(args) == 2 {
				code = args[1]
			} else {
				var err error
				code, err = readLine(cmd.InOrStdin(), cmd.OutOrStdout(), "Enter the 6-digit code")
				if err != nil {
					return err
				}
			}

			return opts.withVault(cmd, func(ctx context.Context, v *services.VaultService) error {
				ok, err := v.Verify(ctx, args[0], code)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("invalid TOTP code for %s", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Code accepted\n", uiSuccess.Sprint("✓"))
				return nil
			})
		},
	}
}

func newAddCommand(opts *rootOptions) *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "add <username> <service> <service-username>",
		Short: "Store or replace a service password",
		Long: `Store the password of <service-username> at <service> for <username>.
The password is read from the terminal without echo, or from the first
line of stdin with --password-stdin.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password", fromStdin)
			if err != nil {
				return err
			}

			return opts.withVault(cmd, func(ctx context.Context, v *services.VaultService) error {
				if err := v.AddPassword(ctx, args[0], args[1], args[2], password); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Password for %s at %s stored\n",
					uiSuccess.Sprint("✓"), uiHighlight.Sprint(args[2]), uiHighlight.Sprint(args[1]))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func newGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <username> [query]",
		Short: "Show stored passwords whose service contains query",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 2 {
				query = args[1]
			}

			return opts.withVault(cmd, func(ctx context.Context, v *services.VaultService) error {
				creds, err := v.GetPasswords(ctx, args[0], query)
				if err != nil {
					return err
				}
				if len(creds) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "%s No passwords match %s\n", uiWarning.Sprint("⚠"), uiHighlight.Sprint(query))
					return nil
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "SERVICE\tUSERNAME\tPASSWORD\tLAST ROTATED")
				for _, c := range creds {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Service, c.ServiceUsername, c.Password, c.LastRotated.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
}

func newPingCommand() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that a running vault server answers over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			resp, err := gs.NewVaultClient(conn).Ping(ctx, &gs.PingRequest{})
			if err != nil {
				return fmt.Errorf("ping %s: %w", addr, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s answered %s\n", uiSuccess.Sprint("✓"), addr, resp.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:50051", "gRPC address of the server")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "how long to wait for the answer")
	return cmd
}

// Command mwbtcswapctl is spec §6's CLI: one subcommand per Dispatch
// Command, a settings file loaded through internal/swapconfig, and exit
// codes derived from the swaperr.Kind of whatever error a run produced
// (0 success, 1 usage error, 2 protocol failure, 3 chain error).
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jafalter/mw-btc-swap/internal/swap"
	"github.com/jafalter/mw-btc-swap/internal/swapconfig"
	"github.com/jafalter/mw-btc-swap/internal/swaperr"
)

var (
	settingsPath string
	settings     *swapconfig.Settings
	orchestrator *swap.Orchestrator
	logger       zerolog.Logger
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		code := 2
		if kind, ok := swaperr.ErrorKind(err); ok {
			code = kind.ExitCode()
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(code)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mwbtcswapctl",
		Short:         "Drive a trust-minimized Grin/Bitcoin atomic swap",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
			loaded, err := swapconfig.Load(settingsPath)
			if err != nil {
				return swaperr.New(swaperr.KindInvalidInput, "main.loadSettings", err)
			}
			if err := loaded.Validate(); err != nil {
				return swaperr.New(swaperr.KindInvalidInput, "main.loadSettings", err)
			}
			settings = loaded
			o, err := swap.New(settings, logger)
			if err != nil {
				return err
			}
			orchestrator = o
			return nil
		},
	}
	root.PersistentFlags().StringVar(&settingsPath, "config", "./settings.json", "path to the settings JSON file")

	root.AddCommand(
		newInitCmd(),
		newImportCmd(),
		newListenCmd(),
		newAcceptCmd(),
		newSetupCmd(),
		newExecuteCmd(),
		newCancelCmd(),
	)
	return root
}

func parseSwapID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, swaperr.New(swaperr.KindInvalidInput, "main.parseSwapID", fmt.Errorf("invalid --swap-id %q: %w", raw, err))
	}
	return id, nil
}

func printResult(s *swap.SwapSlate) {
	fmt.Printf("swap %s: %s\n", s.ID, s.Pub.Status)
}

func newInitCmd() *cobra.Command {
	var from, to string
	var fromAmount, toAmount, timeoutMin uint64
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Start a new swap, recording the amounts and timeout both parties agreed off-band",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := orchestrator.Dispatch(cmd.Context(), swap.CmdInit, swap.Args{
				FromCurrency: swap.Currency(from),
				ToCurrency:   swap.Currency(to),
				FromAmount:   fromAmount,
				ToAmount:     toAmount,
				TimeoutMin:   timeoutMin,
			})
			if err != nil {
				return err
			}
			printResult(s)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from-currency", "", "currency this party is offering (BTC or GRIN)")
	cmd.Flags().StringVar(&to, "to-currency", "", "currency this party is requesting (BTC or GRIN)")
	cmd.Flags().Uint64Var(&fromAmount, "from-amount", 0, "amount offered, in the offered currency's base unit")
	cmd.Flags().Uint64Var(&toAmount, "to-amount", 0, "amount requested, in the requested currency's base unit")
	cmd.Flags().Uint64Var(&timeoutMin, "timeout", 0, "swap timeout in minutes (max 5 days)")
	_ = cmd.MarkFlagRequired("from-currency")
	_ = cmd.MarkFlagRequired("to-currency")
	_ = cmd.MarkFlagRequired("from-amount")
	_ = cmd.MarkFlagRequired("to-amount")
	_ = cmd.MarkFlagRequired("timeout")
	return cmd
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Record an input this party will spend from during setup",
	}
	cmd.AddCommand(newImportBTCCmd(), newImportGrinCmd())
	return cmd
}

func newImportBTCCmd() *cobra.Command {
	var swapID, txid, privKeyWIF, scriptPubKey string
	var vout uint32
	var value int64
	cmd := &cobra.Command{
		Use:   "btc",
		Short: "Import a Bitcoin UTXO this party controls",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSwapID(swapID)
			if err != nil {
				return err
			}
			s, err := orchestrator.Dispatch(cmd.Context(), swap.CmdImportBTC, swap.Args{
				SwapID: id, BTCTxid: txid, BTCVout: vout, BTCValue: value,
				BTCPrivKeyWIF: privKeyWIF, BTCPubScript: scriptPubKey,
			})
			if err != nil {
				return err
			}
			printResult(s)
			return nil
		},
	}
	cmd.Flags().StringVar(&swapID, "swap-id", "", "swap identifier from `init`")
	cmd.Flags().StringVar(&txid, "txid", "", "funding UTXO's transaction id")
	cmd.Flags().Uint32Var(&vout, "vout", 0, "funding UTXO's output index")
	cmd.Flags().Int64Var(&value, "value", 0, "funding UTXO's value, in satoshis")
	cmd.Flags().StringVar(&privKeyWIF, "privkey", "", "WIF-encoded private key controlling the UTXO")
	cmd.Flags().StringVar(&scriptPubKey, "scriptpubkey", "", "hex-encoded scriptPubKey of the UTXO")
	for _, f := range []string{"swap-id", "txid", "value", "privkey", "scriptpubkey"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newImportGrinCmd() *cobra.Command {
	var swapID, commitment, blind string
	var value uint64
	cmd := &cobra.Command{
		Use:   "grin",
		Short: "Import a Mimblewimble output this party owns the opening of",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSwapID(swapID)
			if err != nil {
				return err
			}
			s, err := orchestrator.Dispatch(cmd.Context(), swap.CmdImportGrin, swap.Args{
				SwapID: id, GrinCommitment: commitment, GrinBlindingHex: blind, GrinValueNanogrin: value,
			})
			if err != nil {
				return err
			}
			printResult(s)
			return nil
		},
	}
	cmd.Flags().StringVar(&swapID, "swap-id", "", "swap identifier from `init`")
	cmd.Flags().StringVar(&commitment, "commitment", "", "hex-encoded Pedersen commitment of the output")
	cmd.Flags().StringVar(&blind, "blind", "", "hex-encoded blinding factor opening the commitment")
	cmd.Flags().Uint64Var(&value, "value", 0, "output's value, in nanogrin")
	for _, f := range []string{"swap-id", "commitment", "blind", "value"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newListenCmd() *cobra.Command {
	var swapID string
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Wait for the counterparty to connect and run setup as the offeror",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSwapID(swapID)
			if err != nil {
				return err
			}
			s, err := orchestrator.Dispatch(cmd.Context(), swap.CmdListen, swap.Args{SwapID: id})
			if err != nil {
				return err
			}
			printResult(s)
			return nil
		},
	}
	cmd.Flags().StringVar(&swapID, "swap-id", "", "swap identifier from `init`")
	_ = cmd.MarkFlagRequired("swap-id")
	return cmd
}

func newAcceptCmd() *cobra.Command {
	var swapID string
	cmd := &cobra.Command{
		Use:   "accept",
		Short: "Acknowledge the counterparty's offer, received out of band, before importing inputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSwapID(swapID)
			if err != nil {
				return err
			}
			s, err := orchestrator.Dispatch(cmd.Context(), swap.CmdAccept, swap.Args{SwapID: id})
			if err != nil {
				return err
			}
			printResult(s)
			return nil
		},
	}
	cmd.Flags().StringVar(&swapID, "swap-id", "", "swap identifier, copied from the offeror's pub slate")
	_ = cmd.MarkFlagRequired("swap-id")
	return cmd
}

func newSetupCmd() *cobra.Command {
	var swapID string
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Connect to the offeror and run setup as the taker",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSwapID(swapID)
			if err != nil {
				return err
			}
			s, err := orchestrator.Dispatch(cmd.Context(), swap.CmdSetup, swap.Args{SwapID: id})
			if err != nil {
				return err
			}
			printResult(s)
			return nil
		},
	}
	cmd.Flags().StringVar(&swapID, "swap-id", "", "swap identifier from `init`")
	_ = cmd.MarkFlagRequired("swap-id")
	return cmd
}

func newExecuteCmd() *cobra.Command {
	var swapID string
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Run the settlement round, or broadcast a refund if a chain's timeout has elapsed",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSwapID(swapID)
			if err != nil {
				return err
			}
			s, err := orchestrator.Dispatch(cmd.Context(), swap.CmdExecute, swap.Args{SwapID: id})
			if err != nil {
				return err
			}
			printResult(s)
			return nil
		},
	}
	cmd.Flags().StringVar(&swapID, "swap-id", "", "swap identifier from `init`")
	_ = cmd.MarkFlagRequired("swap-id")
	return cmd
}

func newCancelCmd() *cobra.Command {
	var swapID string
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Abandon a swap that is still INITIALIZED (before any broadcast)",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSwapID(swapID)
			if err != nil {
				return err
			}
			s, err := orchestrator.Dispatch(cmd.Context(), swap.CmdCancel, swap.Args{SwapID: id})
			if err != nil {
				return err
			}
			printResult(s)
			return nil
		},
	}
	cmd.Flags().StringVar(&swapID, "swap-id", "", "swap identifier from `init`")
	_ = cmd.MarkFlagRequired("swap-id")
	return cmd
}

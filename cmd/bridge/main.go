// Command bridge runs one customs or route process: a long-lived daemon
// that replays its local event log, then either watches a settlement
// chain for deposits (customs) or executes releases addressed to it by
// the Hub (route). Cobra subcommand layout and persistent-flag wiring
// follow push-validator-manager's root_cobra.go (teacher pack,
// pushchain-push-chain-node): one rootCmd, flags overriding a loaded
// config, subcommands doing the actual work.
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/octopus-network/omnity-bridge-core/internal/auditlog"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/bitcoin"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/cosmwasm"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/dogecoin"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/evm"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/metrics"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/rpc"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/solana"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/storage"
	"github.com/octopus-network/omnity-bridge-core/internal/config"
	"github.com/octopus-network/omnity-bridge-core/internal/deposit"
	"github.com/octopus-network/omnity-bridge-core/internal/directive"
	"github.com/octopus-network/omnity-bridge-core/internal/domain"
	"github.com/octopus-network/omnity-bridge-core/internal/eventlog"
	"github.com/octopus-network/omnity-bridge-core/internal/hub"
	"github.com/octopus-network/omnity-bridge-core/internal/scheduler"
	"github.com/octopus-network/omnity-bridge-core/internal/signer"
	"github.com/octopus-network/omnity-bridge-core/internal/state"
	"github.com/octopus-network/omnity-bridge-core/internal/ticket"
)

var (
	flagConfig string
	flagJSON   bool
)

var rootCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Omnity-style bridge customs/route daemon",
	Long:  "Run a customs process (observes deposits, submits tickets) or a route process (executes releases for tickets addressed to it).",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file (yaml/toml/json)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json-logs", false, "Emit JSON logs instead of console-formatted output")

	customsCmd := &cobra.Command{Use: "customs", Short: "Customs-side commands"}
	customsCmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start the customs loop: observe deposits, submit tickets, apply directives",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCustoms(cmd.Context())
		},
	})
	rootCmd.AddCommand(customsCmd)

	routeCmd := &cobra.Command{Use: "route", Short: "Route-side commands"}
	routeCmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start the route loop: pull tickets, build/sign/broadcast releases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoute(cmd.Context())
		},
	})
	rootCmd.AddCommand(routeCmd)

	eventsCmd := &cobra.Command{Use: "events", Short: "Event log inspection"}
	eventsCmd.AddCommand(&cobra.Command{
		Use:   "tail",
		Short: "Replay and print this process's local event log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEventsTail()
		},
	})
	rootCmd.AddCommand(eventsCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("bridge 0.1.0")
		},
	})
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd.SetContext(ctx)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if !flagJSON {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// runtimeDeps is the set of components shared by both the customs and
// route loops: everything but the chain-specific Capability.
type runtimeDeps struct {
	cfg       *config.Config
	hubClient hub.Client
	evLog     *eventlog.Log
	st        *state.State
	audit     *auditlog.Logger
	sign      signer.Signer
	rpcClient rpc.RPCClient
	txStore   storage.TransactionStateStore
	metrics   metrics.ChainMetrics

	// ticketCache holds the full Ticket payload for every ticket id the
	// route has pulled but not yet finalized. State only tracks ticket
	// ids in its pending-release queue (it is an event-sourced projection,
	// not a ticket store), so executeRelease needs this side cache to
	// recover amount/receiver/token for a ticket id it is about to settle.
	ticketCache map[string]domain.Ticket
}

func bootstrap() (*runtimeDeps, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	initLogging(cfg)

	evLog, err := eventlog.Open(cfg.EventLogDir)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}

	st := state.New()
	if err := evLog.Replay(st.Apply); err != nil {
		return nil, fmt.Errorf("replaying event log: %w", err)
	}

	auditLogger, err := auditlog.New(cfg.AuditLogPath)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}

	sign, err := buildSigner(cfg)
	if err != nil {
		return nil, fmt.Errorf("building signer: %w", err)
	}

	hubClient := hub.NewHTTPClient(cfg.HubURL, cfg.HubMaxRetries)

	metricsRecorder := metrics.NewPrometheusMetrics()

	var rpcClient rpc.RPCClient
	if len(cfg.RPCEndpoints) > 0 {
		healthTracker := rpc.NewSimpleHealthTracker()
		rpcClient, err = rpc.NewHTTPRPCClient(cfg.RPCEndpoints, 30*time.Second, healthTracker)
		if err != nil {
			return nil, fmt.Errorf("building RPC client: %w", err)
		}
		rpcClient = rpc.NewMetricsRPCClient(rpcClient, metricsRecorder)
	}

	txStore := storage.NewMemoryTxStore()

	return &runtimeDeps{
		cfg: cfg, hubClient: hubClient, evLog: evLog, st: st, audit: auditLogger,
		sign: sign, rpcClient: rpcClient, txStore: txStore, metrics: metricsRecorder,
		ticketCache: make(map[string]domain.Ticket),
	}, nil
}

func buildSigner(cfg *config.Config) (signer.Signer, error) {
	switch cfg.SignerMode {
	case "remote":
		return signer.NewRemote(cfg.SignerURL), nil
	default:
		mnemonic := os.Getenv(cfg.SignerMnemonicEnv)
		if mnemonic == "" {
			// No mnemonic configured (e.g. local dev/test run): fall back
			// to a fixed all-zero seed rather than failing startup.
			return signer.NewLocal(make([]byte, 32))
		}
		return signer.NewLocalFromMnemonic(mnemonic, "")
	}
}

// buildCapability constructs the chain-specific Capability for
// cfg.ChainType. The switch is the bridge's adapter registry: one entry
// per chain family this module implements.
func buildCapability(deps *runtimeDeps) (chainadapter.Capability, error) {
	cfg := deps.cfg
	switch cfg.ChainType {
	case "bitcoin":
		return bitcoin.NewAdapter(deps.rpcClient, deps.txStore, networkFromChainID(cfg.ChainID), "", deps.sign)
	case "dogecoin":
		return dogecoin.NewAdapter(deps.rpcClient, deps.txStore, networkFromChainID(cfg.ChainID), "", deps.sign)
	case "evm":
		return evm.NewAdapter(deps.rpcClient, deps.txStore, 1, "", deps.sign, deps.metrics)
	case "solana":
		return solana.NewAdapter(deps.rpcClient, deps.txStore, deps.sign, deps.metrics)
	case "cosmwasm":
		return cosmwasm.NewAdapter(deps.rpcClient, deps.txStore, cfg.ChainID, cfg.ChainID, "osmo", "", deps.sign), nil
	default:
		return nil, fmt.Errorf("unknown chain_type %q", cfg.ChainType)
	}
}

func networkFromChainID(chainID string) string {
	if len(chainID) > 8 && chainID[len(chainID)-8:] == "-testnet" {
		return "testnet"
	}
	return "mainnet"
}

func runCustoms(ctx context.Context) error {
	deps, err := bootstrap()
	if err != nil {
		return err
	}
	defer deps.evLog.Close()

	adapter, err := buildCapability(deps)
	if err != nil {
		return err
	}

	directiveProc := &directive.Processor{Hub: deps.hubClient, State: deps.st, Log: deps.evLog, ChainID: deps.cfg.ChainID}
	ticketProc := &ticket.Processor{Hub: deps.hubClient, State: deps.st, Log: deps.evLog, ChainID: deps.cfg.ChainID}
	depositObserver := buildDepositObserver(deps, adapter)

	guard := scheduler.NewTimerLogicGuard()
	ticker := time.NewTicker(deps.cfg.PollInterval)
	defer ticker.Stop()

	log.Info().Str("chain_id", deps.cfg.ChainID).Msg("customs: started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("customs: shutting down")
			return nil
		case <-ticker.C:
			guard.Run("directives", func() {
				if n, err := directiveProc.PullAndApply(ctx); err != nil {
					log.Error().Err(err).Msg("customs: directive pull failed")
				} else if n > 0 {
					log.Info().Int("count", n).Msg("customs: applied directives")
				}
			})
			guard.Run("deposits", func() {
				observeDeposits(ctx, deps, depositObserver, ticketProc)
			})
		}
	}
}

// buildDepositObserver wires a chain-family-appropriate deposit.Observer:
// Bitcoin gets confirmation-depth gating and Runes oracle-balance
// attribution; Dogecoin additionally validates a Merkle audit path
// against its claimed block; other chain types get no confirmation
// gating (no UTXOConfirmationSource is wired for them, so Confirmations
// stays nil and the observer finalizes on acceptance).
func buildDepositObserver(deps *runtimeDeps, adapter chainadapter.Capability) *deposit.Observer {
	o := &deposit.Observer{
		Capability:       adapter,
		Hub:              deps.hubClient,
		State:            deps.st,
		Log:              deps.evLog,
		ChainID:          deps.cfg.ChainID,
		MinConfirmations: deps.cfg.MinConfirmations,
	}
	if deps.rpcClient == nil {
		return o
	}
	switch deps.cfg.ChainType {
	case "bitcoin":
		o.RunesMode = true
		o.Confirmations = bitcoin.NewRPCHelper(deps.rpcClient)
	case "dogecoin":
		rpcHelper := dogecoin.NewRPCHelper(deps.rpcClient)
		o.Confirmations = rpcHelper
		o.Validator = &deposit.DogecoinMerkleValidator{RPC: rpcHelper}
	}
	return o
}

func observeDeposits(ctx context.Context, deps *runtimeDeps, observer *deposit.Observer, ticketProc *ticket.Processor) {
	finalized, err := observer.PullAndValidate(ctx)
	if err != nil {
		log.Error().Err(err).Msg("customs: observing deposits failed")
		return
	}
	for _, req := range finalized {
		t := domain.Ticket{
			TicketID:   req.Txid,
			TicketTime: time.Now().UnixNano(),
			SrcChain:   deps.cfg.ChainID,
			DstChain:   req.TargetChainID,
			Action:     domain.ActionTransfer,
			TokenID:    req.TokenID,
			Amount:     req.Amount,
			Receiver:   req.Receiver,
			Type:       domain.TicketNormal,
		}
		if err := ticketProc.SubmitTicket(ctx, t); err != nil {
			log.Error().Err(err).Str("txid", req.Txid).Msg("customs: submitting ticket failed")
			continue
		}
		if err := deps.audit.Log(auditlog.Entry{Timestamp: time.Now(), ChainID: deps.cfg.ChainID, Operation: "TICKET_SUBMITTED", Reference: t.TicketID, Status: "SUCCESS"}); err != nil {
			log.Error().Err(err).Str("ticket_id", t.TicketID).Msg("customs: audit log write failed")
		}
	}
}

func runRoute(ctx context.Context) error {
	deps, err := bootstrap()
	if err != nil {
		return err
	}
	defer deps.evLog.Close()

	adapter, err := buildCapability(deps)
	if err != nil {
		return err
	}

	directiveProc := &directive.Processor{Hub: deps.hubClient, State: deps.st, Log: deps.evLog, ChainID: deps.cfg.ChainID}
	ticketProc := &ticket.Processor{Hub: deps.hubClient, State: deps.st, Log: deps.evLog, ChainID: deps.cfg.ChainID}

	guard := scheduler.NewTimerLogicGuard()
	keyed := scheduler.NewKeyedGuard(4)
	ticker := time.NewTicker(deps.cfg.PollInterval)
	defer ticker.Stop()

	log.Info().Str("chain_id", deps.cfg.ChainID).Msg("route: started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("route: shutting down")
			return nil
		case <-ticker.C:
			guard.Run("directives", func() {
				if n, err := directiveProc.PullAndApply(ctx); err != nil {
					log.Error().Err(err).Msg("route: directive pull failed")
				} else if n > 0 {
					log.Info().Int("count", n).Msg("route: applied directives")
				}
			})
			guard.Run("tickets", func() {
				pullAndExecuteTickets(ctx, deps, adapter, ticketProc, keyed)
			})
		}
	}
}

func pullAndExecuteTickets(ctx context.Context, deps *runtimeDeps, adapter chainadapter.Capability, ticketProc *ticket.Processor, keyed *scheduler.KeyedGuard) {
	_, consumeSeq, _, _ := deps.st.Snapshot()
	tickets, err := deps.hubClient.QueryTickets(ctx, deps.cfg.ChainID, consumeSeq, eventlog.MaxEventsPerQuery)
	if err != nil {
		log.Error().Err(err).Msg("route: ticket lookahead pull failed")
	}
	for _, t := range tickets {
		deps.ticketCache[t.TicketID] = t
	}

	n, err := ticketProc.PullAndApply(ctx)
	if err != nil {
		log.Error().Err(err).Msg("route: ticket pull failed")
		return
	}
	if n == 0 {
		return
	}

	for _, ticketID := range deps.st.PendingReleaseTicketIDs {
		if !keyed.TryEnter(ticketID) {
			continue
		}
		go func(id string) {
			defer keyed.Exit(id)
			executeRelease(ctx, deps, adapter, ticketProc, id)
		}(ticketID)
	}
}

func executeRelease(ctx context.Context, deps *runtimeDeps, adapter chainadapter.Capability, ticketProc *ticket.Processor, ticketID string) {
	t, ok := deps.ticketCache[ticketID]
	if !ok {
		log.Error().Str("ticket_id", ticketID).Msg("route: no cached ticket payload, skipping this round")
		return
	}

	amount, ok := new(big.Int).SetString(t.Amount, 10)
	if !ok {
		log.Error().Str("ticket_id", ticketID).Str("amount", t.Amount).Msg("route: invalid ticket amount")
		return
	}

	req := &chainadapter.ReleaseRequest{
		TicketID:    t.TicketID,
		Destination: domain.Destination{TargetChainID: t.DstChain, Receiver: t.Receiver, Token: t.TokenID},
		Token:       t.TokenID,
		Amount:      amount,
	}

	unsigned, err := adapter.BuildReleaseTx(ctx, req, deps.st.AvailableUtxos(domain.PurposeDepositAddr))
	if err != nil {
		log.Error().Err(err).Str("ticket_id", ticketID).Msg("route: building release tx failed")
		return
	}
	signed, err := adapter.Sign(ctx, unsigned, deps.sign)
	if err != nil {
		log.Error().Err(err).Str("ticket_id", ticketID).Msg("route: signing release tx failed")
		return
	}
	receipt, err := adapter.Broadcast(ctx, signed)
	if err != nil {
		log.Error().Err(err).Str("ticket_id", ticketID).Msg("route: broadcasting release tx failed")
		return
	}

	if err := ticketProc.Finalize(ctx, ticketID, receipt.TxHash); err != nil {
		log.Error().Err(err).Str("ticket_id", ticketID).Msg("route: finalizing ticket failed")
		return
	}
	delete(deps.ticketCache, ticketID)
	if err := deps.audit.Log(auditlog.Entry{Timestamp: time.Now(), ChainID: deps.cfg.ChainID, Operation: "RELEASE_SENT", Reference: ticketID + "->" + receipt.TxHash, Status: "SUCCESS"}); err != nil {
		log.Error().Err(err).Str("ticket_id", ticketID).Msg("route: audit log write failed")
	}
}

func runEventsTail() error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	initLogging(cfg)

	evLog, err := eventlog.Open(cfg.EventLogDir)
	if err != nil {
		return err
	}
	defer evLog.Close()

	count := 0
	err = evLog.Replay(func(ev eventlog.Event) error {
		count++
		fmt.Printf("%6d  %s\n", count, ev.Kind)
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Printf("\n%d events total\n", count)
	return nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrade/execution"
	"github.com/rustyeddy/papertrade/market"
	"github.com/rustyeddy/papertrade/trade"
)

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Open, close and reconcile practice orders on OANDA",
	Long: `Place and manage market orders on the OANDA practice account.

Subcommands:
  price     - Show the mid price for a symbol
  open      - Open a position with a market order
  close     - Close an open position
  reconcile - Resolve an order whose outcome is unknown

Examples:
  papertrade order price FX:EURUSD
  papertrade order open FX:EURUSD --side long --strategy london-breakout
  papertrade order close 01HV6Z3W9K8J6T5R4Q3P2N1M0B
  papertrade order reconcile --tag 01HV6Z3W9K8J6T5R4Q3P2N1M0B --symbol FX:EURUSD --stop 1.0850`,
}

var orderPriceCmd = &cobra.Command{
	Use:   "price <symbol>",
	Short: "Show the mid price for a symbol",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrderPrice,
}

var orderOpenCmd = &cobra.Command{
	Use:   "open <symbol>",
	Short: "Open a position with a market order",
	Long: `Open a position at market. Stop, take profit and size come from the
strategy unless given: the stop from ATR or the last swing, the target from
take_profit_R, the size from risk_per_trade_gbp. The order is checked against
the risk limits before it is sent and is never retried.`,
	Args: cobra.ExactArgs(1),
	RunE: runOrderOpen,
}

var orderCloseCmd = &cobra.Command{
	Use:   "close <position-id>",
	Short: "Close an open position",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrderClose,
}

var orderReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Look up an order by client tag and record it if it was filled",
	Args:  cobra.NoArgs,
	RunE:  runOrderReconcile,
}

var (
	orderSide       string
	orderStrategy   string
	orderMethod     string
	orderSignal     string
	orderUnits      float64
	orderRisk       float64
	orderStop       float64
	orderTakeProfit float64
	orderReason     string
	orderTag        string
	orderSymbol     string
)

func init() {
	rootCmd.AddCommand(orderCmd)
	orderCmd.AddCommand(orderPriceCmd, orderOpenCmd, orderCloseCmd, orderReconcileCmd)

	for _, c := range []*cobra.Command{orderOpenCmd, orderReconcileCmd} {
		c.Flags().StringVar(&orderSide, "side", "", "long|short")
		c.Flags().StringVar(&orderStrategy, "strategy", "", "strategy document id (empty = synthesize)")
		c.Flags().StringVar(&orderMethod, "method", "", "method name recorded on the position")
		c.Flags().StringVar(&orderSignal, "signal", "", "signal id recorded on the position")
		c.Flags().Float64Var(&orderStop, "stop", 0, "stop-loss price")
		c.Flags().Float64Var(&orderTakeProfit, "tp", 0, "take-profit price")
	}
	orderOpenCmd.Flags().Float64Var(&orderUnits, "units", 0, "units (unsigned, default sized from risk)")
	orderOpenCmd.Flags().Float64Var(&orderRisk, "risk", 0, "risk in GBP used for sizing")
	_ = orderOpenCmd.MarkFlagRequired("side")

	orderCloseCmd.Flags().StringVar(&orderReason, "reason", "", "exit reason written to the explanation")

	orderReconcileCmd.Flags().StringVar(&orderTag, "tag", "", "client tag printed by the failed open (required)")
	orderReconcileCmd.Flags().StringVar(&orderSymbol, "symbol", "", "internal symbol, default from the broker")
	_ = orderReconcileCmd.MarkFlagRequired("tag")
}

func runOrderPrice(cmd *cobra.Command, args []string) error {
	b, err := newBroker()
	if err != nil {
		return err
	}
	instrument, err := b.MapSymbol(args[0])
	if err != nil {
		reportOrderError(cmd.ErrOrStderr(), err)
		return err
	}
	mid, err := b.GetMidPrice(cmd.Context(), instrument)
	if err != nil {
		reportOrderError(cmd.ErrOrStderr(), err)
		return err
	}
	meta := market.Instruments[instrument]
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", instrument, meta.FormatPrice(mid))
	return nil
}

func openRequest(symbol string) (execution.OpenRequest, error) {
	req := execution.OpenRequest{
		Symbol:     symbol,
		StrategyID: orderStrategy,
		MethodName: orderMethod,
		SignalID:   orderSignal,
		Units:      orderUnits,
		RiskGBP:    orderRisk,
		Stop:       orderStop,
		TakeProfit: orderTakeProfit,
	}
	if orderSide != "" {
		side, err := trade.ParseSide(orderSide)
		if err != nil {
			return req, err
		}
		req.Side = side
	}
	return req, nil
}

func newService(cmd *cobra.Command) (*execution.Service, func(), error) {
	b, err := newBroker()
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	svc := execution.New(b, st, execution.WithLogger(logger), execution.WithPolicy(cfg.Risk))
	return svc, func() { _ = st.Close() }, nil
}

func runOrderOpen(cmd *cobra.Command, args []string) error {
	req, err := openRequest(args[0])
	if err != nil {
		return err
	}
	svc, done, err := newService(cmd)
	if err != nil {
		return err
	}
	defer done()

	got, err := svc.Open(cmd.Context(), req)
	if err != nil {
		reportOrderError(cmd.ErrOrStderr(), err)
		if got.Fill.TradeID != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "The order WAS filled (trade %s) but recording it failed.\n", got.Fill.TradeID)
		}
		return err
	}

	p := got.Position
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Opened %s %s: %.0f units at %.5f (trade %s)\n", p.Side, p.Symbol, p.Qty, p.EntryPrice, p.BrokerTradeID)
	fmt.Fprintf(out, "  stop %.5f  take profit %.5f\n", p.StopPrice, p.TPPrice)
	fmt.Fprintf(out, "  position %s\n", p.ID)
	return nil
}

func runOrderClose(cmd *cobra.Command, args []string) error {
	svc, done, err := newService(cmd)
	if err != nil {
		return err
	}
	defer done()

	got, err := svc.Close(cmd.Context(), args[0], orderReason)
	if err != nil {
		reportOrderError(cmd.ErrOrStderr(), err)
		if got.Status != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "The trade was closed at the broker (%s) but the position was not updated.\n", got.Status)
		}
		return err
	}

	p := got.Position
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s %s: exit %.5f  P/L £%.2f  R %.2f\n",
		got.Status, p.ID, *p.ExitPrice, *p.PnLGBP, *p.RMultiple)
	return nil
}

func runOrderReconcile(cmd *cobra.Command, args []string) error {
	req, err := openRequest(orderSymbol)
	if err != nil {
		return err
	}
	svc, done, err := newService(cmd)
	if err != nil {
		return err
	}
	defer done()

	got, err := svc.Reconcile(cmd.Context(), orderTag, req)
	if err != nil {
		reportOrderError(cmd.ErrOrStderr(), err)
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case !got.Placed:
		fmt.Fprintf(out, "No trade for tag %s: the order was not placed. It is safe to submit again.\n", orderTag)
	case got.Recorded:
		fmt.Fprintf(out, "✓ Trade %s found and recorded as position %s\n", got.Trade.ID, got.Position.ID)
	default:
		fmt.Fprintf(out, "Trade %s is already recorded as position %s\n", got.Trade.ID, got.Position.ID)
	}
	return nil
}

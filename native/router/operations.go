package router

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stratapool/core/events"
	"stratapool/native/common"
	"stratapool/native/pool"
	"stratapool/native/supply"
	"stratapool/native/token"
)

// Buy sells price-indexed vouchers for volatile tokens. The volatile payment
// is deposited, its stable cost is withdrawn across the reserve's depletion
// bands (shortfalls spill into an automated liquidation of the volatile
// reserve), vouchers are minted at the current price with the tier-adjusted
// quantity, and a transaction fee is extracted into the fee reserve.
func (r *Router) Buy(ctx context.Context, buyer Participant, vaTokens token.Token) (err error) {
	txID := uuid.NewString()
	_, span := r.tracer.Start(ctx, "router.buy",
		trace.WithAttributes(
			attribute.String("tx.id", txID),
			attribute.String("token.denom", vaTokens.Denom()),
			attribute.String("token.amount", common.FormatRat(vaTokens.Amount())),
		))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	started := r.clock()
	defer func() {
		r.finish("buy", started, err)
		r.publishState()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		span.SetStatus(codes.Ok, "buy complete")
	}()

	price, err := r.source.Price(r.cfg.VADenom)
	if err != nil {
		return fmt.Errorf("router: buy: %w", err)
	}
	if err = r.va.Deposit(vaTokens); err != nil {
		return fmt.Errorf("router: buy: %w", err)
	}
	costSA, err := r.source.Exchange(vaTokens, r.cfg.SADenom)
	if err != nil {
		return fmt.Errorf("router: buy: %w", err)
	}

	warning := r.balance.Warning()
	autoConvert := costSA
	var voucherTokens token.Token
	minted := false

	// The stable reserve is frozen while the warning state is active; the
	// entire cost then spills into the automated conversion.
	if !warning {
		stepsSA, remainder, planErr := r.balance.WithdrawalPlan(costSA)
		if planErr != nil {
			return fmt.Errorf("router: buy: %w", planErr)
		}
		stepsVA := make([]token.Token, 0, len(stepsSA))
		for _, step := range stepsSA {
			converted, exErr := r.source.Exchange(step, r.cfg.VADenom)
			if exErr != nil {
				return fmt.Errorf("router: buy: %w", exErr)
			}
			stepsVA = append(stepsVA, converted)
		}
		for _, step := range stepsSA {
			if !common.Gt(step.Amount(), common.Zero()) {
				continue
			}
			if err = r.withStableRetry(func() error { return r.sa.Withdraw(step) }); err != nil {
				return fmt.Errorf("router: buy: %w", err)
			}
		}

		quantity := r.vouchers.AdjustedQuantity(stepsVA, r.cfg.SafetyPremium, r.cfg.Floors)
		voucherTokens = token.New(quantity, supply.SerializeDenom(price))
		minted = true
		autoConvert = remainder
	}

	if common.Gt(autoConvert.Amount(), common.Zero()) {
		liqVA, exErr := r.source.Exchange(autoConvert, r.cfg.VADenom)
		if exErr != nil {
			return fmt.Errorf("router: buy: %w", exErr)
		}
		if err = r.va.Liquidate(liqVA); err != nil {
			return fmt.Errorf("router: buy: automated conversion: %w", err)
		}
		r.emitter.Emit(events.AutoConverted{
			TxID:     txID,
			VADenom:  r.cfg.VADenom,
			VAAmount: liqVA.Amount(),
		})
	}

	if minted {
		r.vouchers.MintTo(buyer, voucherTokens)
	}

	fee := costSA.Scale(r.cfg.FeeRate)
	if err = r.fee.Deposit(fee); err != nil {
		return fmt.Errorf("router: buy: %w", err)
	}

	r.emitter.Emit(events.BuyCompleted{
		TxID:          txID,
		VADenom:       r.cfg.VADenom,
		VAAmount:      vaTokens.Amount(),
		StableCost:    costSA.Amount(),
		Fee:           fee.Amount(),
		VoucherDenom:  voucherTokens.Denom(),
		VoucherAmount: voucherTokens.Amount(),
		AutoConverted: autoConvert.Amount(),
		WarningActive: warning,
	})
	r.logger.Info("buy complete",
		"tx_id", txID,
		"va_amount", common.FormatRat(vaTokens.Amount()),
		"cost_sa", common.FormatRat(costSA.Amount()),
		"warning", warning,
	)

	if err = r.balance.Rebalance(); err != nil {
		return fmt.Errorf("router: buy: rebalance: %w", err)
	}
	return nil
}

// RedeemVoucher pays out the inflation-linked upside on a voucher series. A
// redemption that nets zero (deflation or a depleted surplus) hands the
// vouchers back unchanged so the transaction is a no-op apart from the
// rebalance.
func (r *Router) RedeemVoucher(ctx context.Context, buyer Participant, vcTokens token.Token) (err error) {
	txID := uuid.NewString()
	_, span := r.tracer.Start(ctx, "router.redeem_voucher",
		trace.WithAttributes(
			attribute.String("tx.id", txID),
			attribute.String("token.denom", vcTokens.Denom()),
			attribute.String("token.amount", common.FormatRat(vcTokens.Amount())),
		))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	started := r.clock()
	defer func() {
		r.finish("redeem_voucher", started, err)
		r.publishState()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		span.SetStatus(codes.Ok, "redeem complete")
	}()

	issuePrice, err := supply.ParseDenom(vcTokens.Denom())
	if err != nil {
		return fmt.Errorf("router: redeem voucher: %w", err)
	}
	maxRate, err := r.inflation.MaxRedeemRate()
	if err != nil {
		return fmt.Errorf("router: redeem voucher: %w", err)
	}
	inflationRate, err := r.inflation.Inflation(issuePrice)
	if err != nil {
		return fmt.Errorf("router: redeem voucher: %w", err)
	}

	redeemUSD := new(big.Rat).Mul(issuePrice, vcTokens.Amount())
	redeemUSD.Mul(redeemUSD, inflationRate)
	redeemUSD.Mul(redeemUSD, maxRate)

	if common.Leq(redeemUSD, common.Zero()) {
		cause := ""
		switch {
		case common.Leq(inflationRate, common.Zero()):
			cause = events.CauseDeflation
		case common.Leq(maxRate, common.Zero()):
			cause = events.CauseLowBalance
		}
		// The vouchers were never burned, so crediting them back leaves
		// circulating supply untouched.
		buyer.Receives(vcTokens)
		r.emitter.Emit(events.NothingToRedeem{
			TxID:          txID,
			VoucherDenom:  vcTokens.Denom(),
			VoucherAmount: vcTokens.Amount(),
			Cause:         cause,
		})
		r.logger.Warn("nothing to redeem",
			"tx_id", txID,
			"voucher_denom", vcTokens.Denom(),
			"cause", cause,
		)
		if err = r.balance.Rebalance(); err != nil {
			return fmt.Errorf("router: redeem voucher: rebalance: %w", err)
		}
		return nil
	}

	if err = r.vouchers.Burn(vcTokens); err != nil {
		return fmt.Errorf("router: redeem voucher: %w", err)
	}

	redeemVA, err := r.source.Exchange(token.New(redeemUSD, r.cfg.SADenom), r.cfg.VADenom)
	if err != nil {
		return fmt.Errorf("router: redeem voucher: %w", err)
	}
	keep := new(big.Rat).Sub(common.One(), common.Rat(r.cfg.OpPremium))
	paidVA := redeemVA.Scale(keep)
	if err = r.va.RedeemTo(buyer, paidVA); err != nil {
		return fmt.Errorf("router: redeem voucher: %w", err)
	}

	// The option premium leaves the volatile reserve and lands, converted,
	// in the fee reserve.
	feeVA := redeemVA.Scale(common.Rat(r.cfg.OpPremium))
	if err = r.va.Withdraw(feeVA); err != nil {
		return fmt.Errorf("router: redeem voucher: %w", err)
	}
	feeSA, err := r.source.Exchange(feeVA, r.cfg.SADenom)
	if err != nil {
		return fmt.Errorf("router: redeem voucher: %w", err)
	}
	if err = r.fee.Deposit(feeSA); err != nil {
		return fmt.Errorf("router: redeem voucher: %w", err)
	}

	r.emitter.Emit(events.VoucherRedeemed{
		TxID:          txID,
		VoucherDenom:  vcTokens.Denom(),
		VoucherAmount: vcTokens.Amount(),
		RedeemUSD:     redeemUSD,
		PaidVA:        paidVA.Amount(),
		FeeUSD:        feeSA.Amount(),
	})
	r.logger.Info("voucher redeemed",
		"tx_id", txID,
		"voucher_denom", vcTokens.Denom(),
		"redeem_usd", common.FormatRat(redeemUSD),
	)

	if err = r.balance.Rebalance(); err != nil {
		return fmt.Errorf("router: redeem voucher: rebalance: %w", err)
	}
	return nil
}

// Provide stakes stable tokens and mints LP shares pro rata against the
// initial liquidity reference. The first deposit must come from the protocol
// treasury; it seeds the initial liquidity instead of raising principal.
func (r *Router) Provide(ctx context.Context, provider Participant, saTokens token.Token) (err error) {
	txID := uuid.NewString()
	_, span := r.tracer.Start(ctx, "router.provide",
		trace.WithAttributes(
			attribute.String("tx.id", txID),
			attribute.String("token.amount", common.FormatRat(saTokens.Amount())),
		))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	started := r.clock()
	defer func() {
		r.finish("provide", started, err)
		r.publishState()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		span.SetStatus(codes.Ok, "provide complete")
	}()

	injected := provider.Kind() == KindProtocol
	if err = r.sa.Deposit(saTokens, injected); err != nil {
		return fmt.Errorf("router: provide: %w", err)
	}
	shareAmount := r.sa.LPTokenAmount(saTokens)
	r.shares.MintTo(provider, token.New(shareAmount, supply.ShareDenom))

	r.emitter.Emit(events.LiquidityProvided{
		TxID:             txID,
		StableAmount:     saTokens.Amount(),
		SharesMinted:     shareAmount,
		ProtocolInjected: injected,
	})
	r.logger.Info("liquidity provided",
		"tx_id", txID,
		"sa_amount", common.FormatRat(saTokens.Amount()),
		"shares", common.FormatRat(shareAmount),
		"protocol", injected,
	)
	return nil
}

// RedeemShares burns LP shares and pays the provider their portion of the
// owed stable reserve (principal plus initial liquidity) and of the fee
// reserve. The stable leg runs through the deficit-retry handler; the fee leg
// fails fast.
func (r *Router) RedeemShares(ctx context.Context, provider Participant, lpTokens token.Token) (err error) {
	txID := uuid.NewString()
	_, span := r.tracer.Start(ctx, "router.redeem_shares",
		trace.WithAttributes(
			attribute.String("tx.id", txID),
			attribute.String("token.amount", common.FormatRat(lpTokens.Amount())),
		))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	started := r.clock()
	defer func() {
		r.finish("redeem_shares", started, err)
		r.publishState()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		span.SetStatus(codes.Ok, "redeem complete")
	}()

	portion, err := r.shares.Portion(lpTokens)
	if err != nil {
		return fmt.Errorf("router: redeem shares: %w", err)
	}
	if err = r.shares.Burn(lpTokens); err != nil {
		return fmt.Errorf("router: redeem shares: %w", err)
	}

	principalPay, feePay := r.sharePayout(portion)
	redeemSA := token.New(principalPay, r.cfg.SADenom)
	redeemFee := token.New(feePay, r.cfg.SADenom)

	if err = r.withStableRetry(func() error { return r.sa.RedeemTo(provider, redeemSA) }); err != nil {
		return fmt.Errorf("router: redeem shares: %w", err)
	}
	if err = r.fee.RedeemTo(provider, redeemFee); err != nil {
		return fmt.Errorf("router: redeem shares: %w", err)
	}

	r.emitter.Emit(events.SharesRedeemed{
		TxID:            txID,
		ShareAmount:     lpTokens.Amount(),
		PrincipalPayout: principalPay,
		FeePayout:       feePay,
	})
	r.logger.Info("shares redeemed",
		"tx_id", txID,
		"shares", common.FormatRat(lpTokens.Amount()),
		"principal_payout", common.FormatRat(principalPay),
		"fee_payout", common.FormatRat(feePay),
	)

	if err = r.balance.Rebalance(); err != nil {
		return fmt.Errorf("router: redeem shares: rebalance: %w", err)
	}
	return nil
}

// DryRunRedeemShares computes the stable payout a share redemption would
// yield without mutating any state. The estimate ignores the volatile
// reserve's ability to cover a shortfall.
func (r *Router) DryRunRedeemShares(lpTokens token.Token) (*big.Rat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	portion, err := r.shares.Portion(lpTokens)
	if err != nil {
		return nil, fmt.Errorf("router: dry-run redeem: %w", err)
	}
	principalPay, feePay := r.sharePayout(portion)
	return principalPay.Add(principalPay, feePay), nil
}

func (r *Router) sharePayout(portion *big.Rat) (principalPay, feePay *big.Rat) {
	owed := r.sa.Principal()
	owed.Add(owed, r.sa.InitialLiquidity())
	principalPay = owed.Mul(owed, portion)
	feePay = new(big.Rat).Mul(r.fee.Balance(), portion)
	return principalPay, feePay
}

// withStableRetry is the single failure-recovery point for stable-reserve
// shortfalls. On a recoverable deficit it liquidates the converted deficit
// from the volatile reserve, deposits it, and retries the call exactly once.
// Any other error propagates untouched.
func (r *Router) withStableRetry(call func() error) error {
	err := call()
	var deficit *pool.DeficitError
	if !errors.As(err, &deficit) {
		return err
	}

	liqVA, exErr := r.source.Exchange(token.New(deficit.Deficit, r.cfg.SADenom), r.cfg.VADenom)
	if exErr != nil {
		return fmt.Errorf("convert deficit: %w", exErr)
	}
	if liqErr := r.va.Liquidate(liqVA); liqErr != nil {
		return liqErr
	}
	if depErr := r.sa.Deposit(token.New(deficit.Deficit, r.cfg.SADenom), false); depErr != nil {
		return depErr
	}
	return call()
}

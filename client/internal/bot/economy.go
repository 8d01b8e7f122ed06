package bot

import (
	"context"

	"spacedan/shared/protocol"

	"github.com/google/uuid"
)

// Economy is the balance service the commands settle against.
type Economy interface {
	Balance(ctx context.Context, userID string) (int64, error)
	// Award moves amount (negative to charge) on the user's own account.
	Award(ctx context.Context, userID string, amount int64, kind, description string) (int64, error)
	Transfer(ctx context.Context, fromID, toID string, amount int64, note string) (*protocol.TransferResult, error)
	ClaimDaily(ctx context.Context, userID string) (*protocol.DailyResult, error)
	Work(ctx context.Context, userID string) (*protocol.WorkResult, error)
	Challenge(ctx context.Context, target protocol.Profile, amount int64) (*protocol.DuelChallengeResult, error)
	AcceptDuel(ctx context.Context) (*protocol.DuelAcceptResult, error)
}

// RPCCaller is the row store's procedure call.
type RPCCaller interface {
	RPC(ctx context.Context, proc string, args, out any) error
}

// RPCEconomy implements Economy over the server procedures. Every mutating
// call carries a fresh nonce so a resent request is applied once.
type RPCEconomy struct {
	rpc   RPCCaller
	nonce func() string
}

func NewRPCEconomy(rpc RPCCaller) *RPCEconomy {
	return &RPCEconomy{rpc: rpc, nonce: uuid.NewString}
}

func (e *RPCEconomy) Balance(ctx context.Context, userID string) (int64, error) {
	var out protocol.BalanceResult
	if err := e.rpc.RPC(ctx, protocol.ProcGetBalance, protocol.BalanceArgs{UserID: userID}, &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

func (e *RPCEconomy) Award(ctx context.Context, userID string, amount int64, kind, description string) (int64, error) {
	var out protocol.AwardResult
	err := e.rpc.RPC(ctx, protocol.ProcAwardCoins, protocol.AwardArgs{
		UserID:      userID,
		Amount:      amount,
		Type:        kind,
		Description: description,
		Nonce:       e.nonce(),
	}, &out)
	if err != nil {
		return 0, err
	}
	return out.Balance, nil
}

func (e *RPCEconomy) Transfer(ctx context.Context, fromID, toID string, amount int64, note string) (*protocol.TransferResult, error) {
	var out protocol.TransferResult
	err := e.rpc.RPC(ctx, protocol.ProcTransfer, protocol.TransferArgs{
		FromUserID: fromID,
		ToUserID:   toID,
		Amount:     amount,
		Message:    note,
		Nonce:      e.nonce(),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *RPCEconomy) ClaimDaily(ctx context.Context, userID string) (*protocol.DailyResult, error) {
	var out protocol.DailyResult
	if err := e.rpc.RPC(ctx, protocol.ProcDailyBonus, protocol.DailyArgs{UserID: userID, Nonce: e.nonce()}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *RPCEconomy) Work(ctx context.Context, userID string) (*protocol.WorkResult, error) {
	var out protocol.WorkResult
	if err := e.rpc.RPC(ctx, protocol.ProcWorkShift, protocol.WorkArgs{UserID: userID, Nonce: e.nonce()}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *RPCEconomy) Challenge(ctx context.Context, target protocol.Profile, amount int64) (*protocol.DuelChallengeResult, error) {
	var out protocol.DuelChallengeResult
	err := e.rpc.RPC(ctx, protocol.ProcDuelChallenge, protocol.DuelChallengeArgs{
		TargetID:   target.ID,
		TargetName: target.Username,
		Amount:     amount,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *RPCEconomy) AcceptDuel(ctx context.Context) (*protocol.DuelAcceptResult, error) {
	var out protocol.DuelAcceptResult
	if err := e.rpc.RPC(ctx, protocol.ProcDuelAccept, protocol.DuelAcceptArgs{Nonce: e.nonce()}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

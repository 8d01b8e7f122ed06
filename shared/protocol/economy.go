package protocol

import "time"

// RPC procedure names
const (
	ProcGetBalance   = "get_balance"
	ProcAwardCoins   = "award_coins"
	ProcTransfer     = "transfer_coins"
	ProcDailyBonus   = "claim_daily_bonus"
	ProcWorkShift    = "work_shift"
	ProcPurgeChannel = "purge_channel"
)

// Award kinds accepted by award_coins
const (
	AwardGameReward = "game_reward"
	AwardGameLoss   = "game_loss"
	AwardBet        = "bet"
	AwardVIPChat    = "vip_chat_highlight"
	AwardDaily      = "daily_bonus"
	AwardWork       = "work"
)

// Economy limits shared by client-side validation and the server procedures.
const (
	TransferMin     = 10
	TransferMax     = 500
	TransferFeePct  = 5
	DailyBonus      = 100
	DailyCooldown   = 20 * time.Hour
	WorkCooldown    = time.Hour
	WorkMin         = 20
	WorkMax         = 60
	StartingBalance = 200
)

type BalanceArgs struct {
	UserID string `json:"user_id"`
}
type BalanceResult struct {
	Balance int64 `json:"balance"`
}

// AwardArgs credits (Amount > 0) or debits (Amount < 0) one account.
type AwardArgs struct {
	UserID      string `json:"user_id"`
	Amount      int64  `json:"amount"`
	Type        string `json:"type"`
	Reference   string `json:"reference,omitempty"`
	Description string `json:"description,omitempty"`
	Nonce       string `json:"nonce"`
}
type AwardResult struct {
	Success bool   `json:"success"`
	Balance int64  `json:"balance"`
	Awarded int64  `json:"awarded"`
	Reason  string `json:"reason,omitempty"`
}

type TransferArgs struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	Amount     int64  `json:"amount"`
	Message    string `json:"message,omitempty"`
	Nonce      string `json:"nonce"`
	// NoFee skips the transfer fee; used for game settlements.
	NoFee bool `json:"no_fee,omitempty"`
}
type TransferResult struct {
	Success     bool   `json:"success"`
	TransferID  string `json:"transfer_id"`
	Fee         int64  `json:"fee"`
	NetReceived int64  `json:"net_received"`
	FromBalance int64  `json:"from_balance"`
	Reason      string `json:"reason,omitempty"`
}

type DailyArgs struct {
	UserID string `json:"user_id"`
	Nonce  string `json:"nonce"`
}
type DailyResult struct {
	Success bool      `json:"success"`
	Bonus   int64     `json:"bonus"`
	Balance int64     `json:"balance"`
	Reason  string    `json:"reason,omitempty"`
	NextAt  time.Time `json:"next_at,omitempty"`
}

type WorkArgs struct {
	UserID string `json:"user_id"`
	Nonce  string `json:"nonce"`
}
type WorkResult struct {
	Success bool      `json:"success"`
	Earned  int64     `json:"earned"`
	Balance int64     `json:"balance"`
	Reason  string    `json:"reason,omitempty"`
	NextAt  time.Time `json:"next_at,omitempty"`
}

type PurgeArgs struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
}
type PurgeResult struct {
	Deleted int64 `json:"deleted"`
}

// Duel procedures. The pending offer lives on the server so every client
// sees the same one.
const (
	ProcDuelChallenge = "duel_challenge"
	ProcDuelAccept    = "duel_accept"
)

type DuelChallengeArgs struct {
	TargetID   string `json:"target_id"`
	TargetName string `json:"target_name"`
	Amount     int64  `json:"amount"`
}
type DuelChallengeResult struct {
	ExpiresAt time.Time `json:"expires_at"`
}

type DuelAcceptArgs struct {
	Nonce string `json:"nonce"`
}
type DuelAcceptResult struct {
	ChallengerID   string `json:"challenger_id"`
	ChallengerName string `json:"challenger_name"`
	WinnerID       string `json:"winner_id"`
	Amount         int64  `json:"amount"`
	Balance        int64  `json:"balance"`
}

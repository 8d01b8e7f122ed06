package protocol

import "time"

// Profile is the public part of a profiles row.
type Profile struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	AvatarURL   string    `json:"avatar_url"`
	Balance     int64     `json:"balance"`
	LastDailyAt time.Time `json:"last_daily_at,omitempty"`
	LastWorkAt  time.Time `json:"last_work_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// REST auth payloads
type RegisterReq struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}
type RegisterResp struct {
	OK bool `json:"ok"`
}

type LoginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
type LoginResp struct {
	Token    string  `json:"token"`
	Username string  `json:"username"`
	Profile  Profile `json:"profile"`
}
